// Package funds implements project fund accounting: per-head spending
// aggregation, carry-forward of unspent allocation, manual period
// overrides and the read-only remaining balance view.
package funds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"labfunds/internal/core"
)

// ProjectStore loads and saves projects.
//
// UpdateProject must only succeed when the stored version equals p.Version;
// it then bumps p.Version and returns. A stale version yields core.ErrConflict.
type ProjectStore interface {
	GetProject(ctx context.Context, id uuid.UUID) (*core.Project, error)
	ListProjects(ctx context.Context) ([]core.Project, error)
	UpdateProject(ctx context.Context, p *core.Project) error
}

// SpendingReader sums filed spending per head for one project period.
type SpendingReader interface {
	ReimbursementTotals(ctx context.Context, projectID uuid.UUID, index int) (map[string]decimal.Decimal, error)
	InstituteExpenseTotals(ctx context.Context, projectID uuid.UUID, index int) (map[string]decimal.Decimal, error)
}

// Clock supplies "today".
type Clock func() time.Time

// SystemClock reads the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
