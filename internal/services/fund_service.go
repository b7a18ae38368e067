package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"labfunds/internal/amqp"
	"labfunds/internal/cache"
	"labfunds/internal/core"
	"labfunds/internal/funds"
	"labfunds/internal/log"
	"labfunds/internal/period"
)

// ProjectView is a project plus its derived period position.
type ProjectView struct {
	*core.Project
	CurrentIndex int    `json:"current_index"`
	PeriodCount  int    `json:"period_count"`
	Period       string `json:"period"`
}

// HeadsUpdate replaces a project's head allocations. Version must match the
// stored project.
type HeadsUpdate struct {
	Heads         core.SeriesMap[decimal.Decimal]
	NegativeHeads []string
	Version       int64
}

// totalsKey pins cached totals to the period they were computed for, so a
// date rollover or an override written elsewhere misses the cache.
type totalsKey struct {
	project uuid.UUID
	index   int
}

// FundService exposes project and fund operations.
type FundService struct {
	store       Store
	events      EventPublisher
	now         funds.Clock
	agg         *funds.Aggregator
	engine      *funds.Engine
	ledger      *funds.Ledger
	totals      *cache.LRUCache[totalsKey, map[string]decimal.Decimal]
	concurrency int
	logger      *log.Logger
}

type Option func(*FundService)

func WithClock(now funds.Clock) Option {
	return func(s *FundService) { s.now = now }
}

// WithEvents enables fund event publishing.
func WithEvents(p EventPublisher) Option {
	return func(s *FundService) { s.events = p }
}

// WithTotalsCache caches total-expenses lookups for ttl.
func WithTotalsCache(size int, ttl time.Duration) Option {
	return func(s *FundService) {
		if ttl > 0 {
			s.totals = cache.NewLRUCache[totalsKey, map[string]decimal.Decimal](size, ttl)
		}
	}
}

func WithBalanceConcurrency(n int) Option {
	return func(s *FundService) { s.concurrency = n }
}

func WithLogger(l *log.Logger) Option {
	return func(s *FundService) { s.logger = l }
}

func NewFundService(store Store, opts ...Option) *FundService {
	s := &FundService{
		store:  store,
		now:    funds.SystemClock,
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentFunds)
	s.agg = funds.NewAggregator(store)
	s.engine = funds.NewEngine(store, s.agg, s.now)
	s.ledger = funds.NewLedger(store, s.agg, s.now, s.concurrency)
	return s
}

// TotalsCache exposes the cache for periodic cleanup; nil when disabled.
func (s *FundService) TotalsCache() cache.Cleaner {
	if s.totals == nil {
		return nil
	}
	return s.totals
}

// Today is the service clock's current time.
func (s *FundService) Today() time.Time { return s.now() }

func (s *FundService) view(p *core.Project) ProjectView {
	curr := period.CurrentIndex(p, s.now())
	return ProjectView{
		Project:      p,
		CurrentIndex: curr,
		PeriodCount:  period.Count(p),
		Period:       period.Label(p, curr),
	}
}

func validateProject(p *core.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return p.ValidateSeries(period.Count(p))
}

func (s *FundService) CreateProject(ctx context.Context, p *core.Project) (ProjectView, error) {
	p.Version = 0
	p.CarryForward = core.SeriesMap[decimal.NullDecimal]{}
	if p.Override != nil {
		p.Override.Type = p.Type
	}
	if err := validateProject(p); err != nil {
		return ProjectView{}, err
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return ProjectView{}, fmt.Errorf("save project: %w", err)
	}
	s.logger.InfoContext(ctx, "Project created",
		log.FieldProjectID, p.ID,
		log.FieldOperation, log.OpCreate,
		"periods", period.Count(p))
	return s.view(p), nil
}

func (s *FundService) GetProject(ctx context.Context, id uuid.UUID) (ProjectView, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return ProjectView{}, err
	}
	return s.view(p), nil
}

func (s *FundService) ListProjects(ctx context.Context) ([]ProjectView, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := make([]ProjectView, len(projects))
	for i := range projects {
		out[i] = s.view(&projects[i])
	}
	return out, nil
}

// UpdateHeads replaces the allocations. Carry-forward series of removed
// heads are dropped; kept heads keep theirs.
func (s *FundService) UpdateHeads(ctx context.Context, id uuid.UUID, upd HeadsUpdate) (ProjectView, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return ProjectView{}, err
	}
	if upd.Version != 0 && upd.Version != p.Version {
		return ProjectView{}, fmt.Errorf("project %s is at version %d, not %d: %w", id, p.Version, upd.Version, core.ErrConflict)
	}
	p.Heads = upd.Heads.Clone()
	p.NegativeHeads = upd.NegativeHeads
	for _, h := range p.CarryForward.Keys() {
		if !p.Heads.Has(h) {
			p.CarryForward.Delete(h)
		}
	}
	if err := validateProject(p); err != nil {
		return ProjectView{}, err
	}
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return ProjectView{}, fmt.Errorf("save heads: %w", err)
	}
	v := s.view(p)
	s.changed(ctx, amqp.EventHeadsUpdated, p.ID, v.CurrentIndex)
	return v, nil
}

func (s *FundService) DeleteProject(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.invalidate(id)
	s.logger.InfoContext(ctx, "Project deleted", log.FieldProjectID, id)
	return nil
}

// TotalExpenses returns spending per head at the project's current period.
func (s *FundService) TotalExpenses(ctx context.Context, id uuid.UUID) (map[string]decimal.Decimal, int, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	curr := period.CurrentIndex(p, s.now())
	if curr == period.Expired {
		return map[string]decimal.Decimal{}, curr, nil
	}
	key := totalsKey{project: id, index: curr}
	if s.totals != nil {
		if totals, ok := s.totals.Get(key); ok {
			return copyTotals(totals), curr, nil
		}
	}
	totals, err := s.agg.Totals(ctx, id, curr)
	if err != nil {
		return nil, 0, err
	}
	if s.totals != nil {
		s.totals.Set(key, copyTotals(totals))
	}
	return totals, curr, nil
}

func copyTotals(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *FundService) CarryForward(ctx context.Context, id uuid.UUID) (ProjectView, error) {
	p, err := s.engine.CarryForward(ctx, id)
	if err != nil {
		return ProjectView{}, err
	}
	s.logger.InfoContext(ctx, "Carry forward recorded",
		log.FieldProjectID, id,
		log.FieldPeriod, p.Override.Index-1,
		log.FieldVersion, p.Version)
	v := s.view(p)
	s.changed(ctx, amqp.EventCarryForward, id, v.CurrentIndex)
	return v, nil
}

func (s *FundService) SetOverride(ctx context.Context, id uuid.UUID, selected int) (ProjectView, error) {
	p, err := s.engine.SetOverride(ctx, id, selected)
	if err != nil {
		return ProjectView{}, err
	}
	s.logger.InfoContext(ctx, "Period override set", log.FieldProjectID, id, log.FieldPeriod, selected)
	v := s.view(p)
	s.changed(ctx, amqp.EventOverrideSet, id, v.CurrentIndex)
	return v, nil
}

func (s *FundService) ClearOverride(ctx context.Context, id uuid.UUID) (ProjectView, error) {
	p, err := s.engine.ClearOverride(ctx, id)
	if err != nil {
		return ProjectView{}, err
	}
	v := s.view(p)
	s.logger.InfoContext(ctx, "Period override cleared", log.FieldProjectID, id, log.FieldPeriod, v.CurrentIndex)
	s.changed(ctx, amqp.EventOverrideCleared, id, v.CurrentIndex)
	return v, nil
}

func (s *FundService) ProjectBalance(ctx context.Context, id uuid.UUID) (*funds.ProjectBalance, error) {
	return s.ledger.ProjectBalance(ctx, id)
}

// Balances lists remaining balances of every project still in a period.
func (s *FundService) Balances(ctx context.Context) ([]funds.ProjectBalance, error) {
	return s.ledger.Balances(ctx)
}

// checkHeadBudget rejects spending amount on head at period curr when it
// would overdraw a head that is not allowed to go negative.
func (s *FundService) checkHeadBudget(ctx context.Context, p *core.Project, curr int, head string, amount decimal.Decimal) error {
	if p.AllowsNegative(head) {
		return nil
	}
	totals, err := s.agg.Totals(ctx, p.ID, curr)
	if err != nil {
		return err
	}
	for _, line := range funds.Remaining(p, curr, totals) {
		if line.Head == head && amount.GreaterThan(line.Remaining) {
			return funds.ErrOverspend
		}
	}
	return nil
}

// changed invalidates cached views and announces the change. Publishing
// problems are logged only; the write already succeeded.
func (s *FundService) changed(ctx context.Context, kind amqp.EventKind, projectID uuid.UUID, idx int) {
	s.invalidate(projectID)
	if s.events == nil {
		return
	}
	msg := amqp.NewFundEventMessage(kind, projectID, idx)
	if err := s.events.PublishFundEvent(ctx, msg); err != nil {
		fields := log.NewFields().
			WithOperation("publish " + string(kind)).
			WithProject(projectID, idx).
			WithError(err)
		s.logger.ErrorContext(ctx, "Failed to publish fund event", fields.ToSlice()...)
	}
}

func (s *FundService) invalidate(projectID uuid.UUID) {
	if s.totals != nil {
		s.totals.DeleteFunc(func(k totalsKey) bool { return k.project == projectID })
	}
}
