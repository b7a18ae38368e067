package funds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"labfunds/internal/core"
	"labfunds/internal/period"
)

type HeadBalance struct {
	Head       string          `json:"head"`
	Allocation decimal.Decimal `json:"allocation"`
	CarryIn    decimal.Decimal `json:"carry_in"`
	Spent      decimal.Decimal `json:"spent"`
	Remaining  decimal.Decimal `json:"remaining"`
}

// ProjectBalance is the derived remaining-balance view of one project. It is
// never written back to the project.
type ProjectBalance struct {
	ProjectID uuid.UUID        `json:"project_id"`
	Name      string           `json:"name"`
	Type      core.ProjectType `json:"project_type"`
	Index     int              `json:"period_index"`
	Period    string           `json:"period"`
	Heads     []HeadBalance    `json:"heads"`
}

// Head returns the balance line for head.
func (b *ProjectBalance) Head(head string) (HeadBalance, bool) {
	for _, h := range b.Heads {
		if h.Head == head {
			return h, true
		}
	}
	return HeadBalance{}, false
}

// Remaining computes per-head balances of p at period curr from the
// spending totals of that period, in head order.
func Remaining(p *core.Project, curr int, totals map[string]decimal.Decimal) []HeadBalance {
	heads := p.Heads.Keys()
	out := make([]HeadBalance, 0, len(heads))
	for _, head := range heads {
		carryIn := decimal.Zero
		if curr > 0 {
			if c := p.Carry(head, curr-1); c.Valid {
				carryIn = c.Decimal
			}
		}
		alloc := p.Allocation(head, curr)
		spent := totals[head]
		out = append(out, HeadBalance{
			Head:       head,
			Allocation: alloc,
			CarryIn:    carryIn,
			Spent:      spent,
			Remaining:  alloc.Add(carryIn).Sub(spent),
		})
	}
	return out
}

// Ledger reads remaining balances.
type Ledger struct {
	projects    ProjectStore
	agg         *Aggregator
	now         Clock
	concurrency int
}

// NewLedger builds a ledger that computes at most concurrency project
// balances at once when listing.
func NewLedger(projects ProjectStore, agg *Aggregator, now Clock, concurrency int) *Ledger {
	if now == nil {
		now = SystemClock
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Ledger{projects: projects, agg: agg, now: now, concurrency: concurrency}
}

// ProjectBalance returns the balance of one project at its current period.
func (l *Ledger) ProjectBalance(ctx context.Context, id uuid.UUID) (*ProjectBalance, error) {
	p, err := l.projects.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.balance(ctx, p)
}

// Balances returns balances for every project that still has a current
// period, in store order.
func (l *Ledger) Balances(ctx context.Context) ([]ProjectBalance, error) {
	projects, err := l.projects.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	today := l.now()
	results := make([]*ProjectBalance, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i := range projects {
		p := &projects[i]
		if period.CurrentIndex(p, today) == period.Expired {
			continue
		}
		g.Go(func() error {
			b, err := l.balanceAt(gctx, p, today)
			if err != nil {
				return fmt.Errorf("balance of %s: %w", p.ID, err)
			}
			results[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ProjectBalance, 0, len(results))
	for _, b := range results {
		if b != nil {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (l *Ledger) balance(ctx context.Context, p *core.Project) (*ProjectBalance, error) {
	return l.balanceAt(ctx, p, l.now())
}

func (l *Ledger) balanceAt(ctx context.Context, p *core.Project, today time.Time) (*ProjectBalance, error) {
	curr := period.CurrentIndex(p, today)
	if curr == period.Expired {
		return nil, ErrTimelineOver
	}
	totals, err := l.agg.Totals(ctx, p.ID, curr)
	if err != nil {
		return nil, err
	}
	return &ProjectBalance{
		ProjectID: p.ID,
		Name:      p.Name,
		Type:      p.Type,
		Index:     curr,
		Period:    period.Label(p, curr),
		Heads:     Remaining(p, curr, totals),
	}, nil
}
