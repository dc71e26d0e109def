package domain

import (
	"fmt"
	"strings"
)

// ResetPlan describes which tables a reset scope clears and how the change
// is announced to subscribed clients.
type ResetPlan struct {
	Scope         string
	ClearSales    bool
	ClearProducts bool
	EventType     string
	Message       string
}

var ResetScopes = []string{"overview", "sales", "inventory", "stock", "reports", "alerts", "all"}

func ParseResetScope(raw string) (ResetPlan, error) {
	scope := strings.ToLower(strings.TrimSpace(raw))
	switch scope {
	case "all", "overview":
		return ResetPlan{
			Scope:         scope,
			ClearSales:    true,
			ClearProducts: true,
			EventType:     "all",
			Message:       "All data has been cleared",
		}, nil
	case "sales":
		return ResetPlan{
			Scope:      scope,
			ClearSales: true,
			EventType:  "sales",
			Message:    "Sales data has been cleared",
		}, nil
	case "inventory", "stock", "alerts":
		return ResetPlan{
			Scope:         scope,
			ClearProducts: true,
			EventType:     "inventory",
			Message:       "Inventory data has been cleared",
		}, nil
	case "reports":
		return ResetPlan{
			Scope:     scope,
			EventType: "reports",
			Message:   "Reports are derived from sales and inventory; nothing was cleared",
		}, nil
	}
	return ResetPlan{}, fmt.Errorf("invalid tab type %q, must be one of: %s", raw, strings.Join(ResetScopes, ", "))
}

func (p ResetPlan) Summary() string {
	if p.Scope == "all" {
		return "All data has been cleared successfully"
	}
	return fmt.Sprintf("%s data has been cleared successfully", p.Scope)
}
