package funds

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Aggregator computes what has been spent per head in a period.
type Aggregator struct {
	spending SpendingReader
}

func NewAggregator(spending SpendingReader) *Aggregator {
	return &Aggregator{spending: spending}
}

// Totals returns reimbursement totals plus institute expenses per head for
// the project period. Heads without activity are absent.
func (a *Aggregator) Totals(ctx context.Context, projectID uuid.UUID, index int) (map[string]decimal.Decimal, error) {
	var reimbursed, institute map[string]decimal.Decimal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reimbursed, err = a.spending.ReimbursementTotals(gctx, projectID, index)
		if err != nil {
			return fmt.Errorf("sum reimbursements: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		institute, err = a.spending.InstituteExpenseTotals(gctx, projectID, index)
		if err != nil {
			return fmt.Errorf("sum institute expenses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return MergeTotals(reimbursed, institute), nil
}

// MergeTotals adds head maps together into a new map.
func MergeTotals(parts ...map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, part := range parts {
		for head, v := range part {
			out[head] = out[head].Add(v)
		}
	}
	return out
}
