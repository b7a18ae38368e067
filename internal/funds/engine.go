package funds

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"labfunds/internal/core"
	"labfunds/internal/period"
)

// Engine moves projects between periods.
type Engine struct {
	projects ProjectStore
	agg      *Aggregator
	now      Clock
}

func NewEngine(projects ProjectStore, agg *Aggregator, now Clock) *Engine {
	if now == nil {
		now = SystemClock
	}
	return &Engine{projects: projects, agg: agg, now: now}
}

// CurrentIndex is the project's current period as of the engine clock.
func (e *Engine) CurrentIndex(p *core.Project) int {
	return period.CurrentIndex(p, e.now())
}

// TotalExpenses aggregates spending at the project's current period. An
// expired project has no current period and reports nothing.
func (e *Engine) TotalExpenses(ctx context.Context, id uuid.UUID) (map[string]decimal.Decimal, int, error) {
	p, err := e.projects.GetProject(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	curr := e.CurrentIndex(p)
	if curr == period.Expired {
		return map[string]decimal.Decimal{}, curr, nil
	}
	totals, err := e.agg.Totals(ctx, id, curr)
	if err != nil {
		return nil, 0, err
	}
	return totals, curr, nil
}

// CarryForward closes the current period: every head's unspent allocation
// is recorded as carry and the project is pinned to the next period.
func (e *Engine) CarryForward(ctx context.Context, id uuid.UUID) (*core.Project, error) {
	p, err := e.projects.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	curr := e.CurrentIndex(p)
	if err := CheckCarry(p, curr); err != nil {
		return nil, err
	}
	totals, err := e.agg.Totals(ctx, id, curr)
	if err != nil {
		return nil, err
	}
	if err := ApplyCarry(p, curr, totals); err != nil {
		return nil, err
	}
	if err := e.projects.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("save carry forward: %w", err)
	}
	return p, nil
}

// SetOverride pins the project to period selected.
func (e *Engine) SetOverride(ctx context.Context, id uuid.UUID, selected int) (*core.Project, error) {
	p, err := e.projects.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckOverride(p, e.CurrentIndex(p), selected); err != nil {
		return nil, err
	}
	p.Override = &core.Override{Type: p.Type, Index: selected}
	if err := e.projects.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("save override: %w", err)
	}
	return p, nil
}

// ClearOverride returns the project to date-derived periods.
func (e *Engine) ClearOverride(ctx context.Context, id uuid.UUID) (*core.Project, error) {
	p, err := e.projects.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckClearOverride(p, e.CurrentIndex(p)); err != nil {
		return nil, err
	}
	p.Override = nil
	if err := e.projects.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("clear override: %w", err)
	}
	return p, nil
}

// CheckCarry reports whether period curr of p may be carried forward.
func CheckCarry(p *core.Project, curr int) error {
	switch {
	case curr == period.Expired:
		return ErrTimelineOver
	case period.IsLast(p, curr) || !period.InBounds(p, curr):
		return ErrLastPeriod
	case p.AnyCarryAt(curr):
		return ErrAlreadyCarried
	}
	return nil
}

// ApplyCarry records allocation minus spending for every head at curr and
// overrides the project to curr+1. The result may be negative.
func ApplyCarry(p *core.Project, curr int, totals map[string]decimal.Decimal) error {
	if err := CheckCarry(p, curr); err != nil {
		return err
	}
	slots := max(period.Count(p)-1, 0)
	for _, head := range p.Heads.Keys() {
		series, ok := p.CarryForward.Get(head)
		if !ok || len(series) != slots {
			resized := make([]decimal.NullDecimal, slots)
			copy(resized, series)
			series = resized
		}
		left := p.Allocation(head, curr).Sub(totals[head])
		series[curr] = decimal.NewNullDecimal(left)
		p.CarryForward.Set(head, series)
	}
	p.Override = &core.Override{Type: p.Type, Index: curr + 1}
	return nil
}

// CheckOverride validates pinning p to selected while curr is current.
func CheckOverride(p *core.Project, curr, selected int) error {
	if !period.InBounds(p, selected) {
		return ErrPeriodOutOfRange
	}
	if selected == curr {
		return ErrRedundantOverride
	}
	if curr != period.Expired && p.AnyCarryAt(selected) {
		return ErrCarryRecorded
	}
	return nil
}

// CheckClearOverride validates removing the override while curr is current.
func CheckClearOverride(p *core.Project, curr int) error {
	if p.Override == nil {
		return ErrNoOverride
	}
	if curr != period.Expired && p.AnyCarryAt(curr) {
		return ErrCarryRecorded
	}
	return nil
}
