package sheets

import (
	"context"

	"budgetsim/internal/core"
)

// Ports for outbound adapters.
type (
	// FamilyExporter replaces the exported table with the given families.
	FamilyExporter interface {
		ExportFamilies(ctx context.Context, families []core.Family) error
	}

	// BalanceReader reads back exported balances keyed by family name.
	BalanceReader interface {
		ReadBalances(ctx context.Context) (map[string]string, error)
	}
)
