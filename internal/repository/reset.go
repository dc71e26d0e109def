package repository

import (
	"context"
	"fmt"

	"pharmapos/internal/domain"
)

// ResetData clears the tables a plan names and restarts their id
// sequences. Products are deleted rather than truncated so sale lines keep
// their snapshot with a NULL product reference.
func (r *Repository) ResetData(ctx context.Context, plan domain.ResetPlan) error {
	if !plan.ClearSales && !plan.ClearProducts {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if plan.ClearSales {
		if _, err := tx.Exec(ctx, "TRUNCATE sale_items, sales RESTART IDENTITY"); err != nil {
			return fmt.Errorf("clear sales: %w", err)
		}
	}
	if plan.ClearProducts {
		if _, err := tx.Exec(ctx, "DELETE FROM products"); err != nil {
			return fmt.Errorf("clear products: %w", err)
		}
		if _, err := tx.Exec(ctx, "SELECT setval(pg_get_serial_sequence('products', 'id'), 1, false)"); err != nil {
			return fmt.Errorf("restart product ids: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reset tx: %w", err)
	}
	return nil
}
