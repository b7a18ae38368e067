// Package sheets exports balance snapshots to spreadsheet-like sinks.
package sheets

import (
	"context"

	"labfunds/internal/funds"
)

// Ports for outbound adapters.
type (
	// BalanceExporter writes project balances, one row per head.
	BalanceExporter interface {
		// ExportProject upserts the rows of one project.
		ExportProject(ctx context.Context, b funds.ProjectBalance) error
		// ExportAll replaces the whole snapshot.
		ExportAll(ctx context.Context, all []funds.ProjectBalance) error
	}
)
