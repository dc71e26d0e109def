package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"pharmapos/internal/config"
	"pharmapos/internal/db"
	"pharmapos/internal/domain"
	"pharmapos/internal/excel"
	"pharmapos/internal/repository"
	"pharmapos/internal/service"
)

type options struct {
	filePath string
	reset    string
	seed     bool
	yes      bool
}

// logNotifier stands in for the broadcaster; a running server's clients
// pick the change up on their next reload.
type logNotifier struct{}

func (logNotifier) Notify(eventType string, payload any) {
	log.Printf("event %s: %+v", eventType, payload)
}

func main() {
	opts := parseFlags()
	if opts.reset != "" {
		if _, err := domain.ParseResetScope(opts.reset); err != nil {
			log.Fatalf("reset: %v", err)
		}
		if !opts.yes && !confirmReset(os.Stdin, os.Stderr, opts.reset) {
			log.Fatalf("reset aborted")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	svc := service.New(repository.New(pool), logNotifier{}, service.Options{
		LowStockLevel:    cfg.LowStockLevel,
		ExpiryWindowDays: cfg.ExpiryWindowDays,
	})

	if opts.reset != "" {
		plan, err := svc.ResetData(ctx, opts.reset)
		if err != nil {
			log.Fatalf("reset failed: %v", err)
		}
		log.Print(plan.Summary())
	}

	if opts.seed {
		result, err := svc.ImportProducts(ctx, sampleProducts())
		if err != nil {
			log.Fatalf("seed failed: %v", err)
		}
		log.Printf("seed complete: created=%d updated=%d", result.Created, result.Updated)
	}

	if opts.filePath != "" {
		rows, err := readProductRows(opts.filePath)
		if err != nil {
			log.Fatalf("read inventory file: %v", err)
		}
		result, err := svc.ImportProducts(ctx, rows)
		if err != nil {
			log.Fatalf("import failed: %v", err)
		}
		log.Printf("import complete: rows=%d created=%d updated=%d", result.TotalRows, result.Created, result.Updated)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(
		&opts.filePath,
		"file",
		"",
		"path to an inventory .xlsx or .csv file to upsert by product name",
	)
	flag.StringVar(
		&opts.reset,
		"reset",
		"",
		fmt.Sprintf("clear data before importing; one of %v", domain.ResetScopes),
	)
	flag.BoolVar(
		&opts.yes,
		"yes",
		false,
		"clear data without asking for confirmation",
	)
	flag.BoolVar(
		&opts.seed,
		"seed",
		false,
		"insert the sample pharmacy products",
	)
	flag.Parse()
	if opts.filePath == "" && opts.reset == "" && !opts.seed {
		flag.Usage()
		os.Exit(2)
	}
	return opts
}

// confirmReset asks before clearing anything and accepts only y or yes.
func confirmReset(in io.Reader, out io.Writer, scope string) bool {
	fmt.Fprintf(out, "Clear %s data in the database? [y/N] ", scope)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func readProductRows(path string) ([]domain.ProductInput, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	rows, err := excel.ParseProductRows(filepath.Base(path), file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

func sampleProducts() []domain.ProductInput {
	product := func(name, description, category string, price float64, stock int, unit string, defaultQty int, expiry string) domain.ProductInput {
		return domain.ProductInput{
			Name:        name,
			Description: &description,
			Category:    category,
			Price:       &price,
			Stock:       &stock,
			Unit:        unit,
			DefaultQty:  &defaultQty,
			ExpiryDate:  &expiry,
		}
	}
	return []domain.ProductInput{
		product("Paracetamol", "Pain reliever 500mg", "Analgesics", 10.99, 100, "tabs", 10, "2027-12-31"),
		product("Ibuprofen", "Anti-inflammatory 400mg", "Analgesics", 15.50, 50, "tabs", 10, "2026-08-15"),
		product("Amoxicillin", "Antibiotic 250mg", "Antibiotics", 25.00, 30, "caps", 1, "2027-06-30"),
		product("Cetirizine", "Antihistamine 10mg", "Allergy", 8.75, 40, "tabs", 10, "2027-03-25"),
		product("Vitamin C", "Supplement 1000mg", "Vitamins", 12.99, 80, "tabs", 5, "2028-01-10"),
	}
}
