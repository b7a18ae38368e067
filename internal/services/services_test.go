package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labfunds/internal/amqp"
	"labfunds/internal/core"
	"labfunds/internal/funds"
	"labfunds/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.FundEventMessage
	err    error
}

func (p *recordingPublisher) PublishFundEvent(_ context.Context, msg *amqp.FundEventMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventKind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type harness struct {
	store    Store
	events   *recordingPublisher
	funds    *FundService
	expenses *ExpenseService
}

func newHarness(t *testing.T, today string) *harness {
	t.Helper()
	return newHarnessOn(t, memory.New(), today)
}

func newHarnessOn(t *testing.T, store Store, today string) *harness {
	t.Helper()
	events := &recordingPublisher{}
	fs := NewFundService(store,
		WithClock(funds.FixedClock(core.MustDate(today).Time)),
		WithEvents(events),
		WithTotalsCache(16, time.Minute),
	)
	return &harness{store: store, events: events, funds: fs, expenses: NewExpenseService(store, fs)}
}

func (h *harness) invoiceProject(t *testing.T) ProjectView {
	t.Helper()
	p := &core.Project{
		Name: "Imaging",
		Type: core.Invoice,
		Installments: []core.Installment{
			{StartDate: core.MustDate("2024-01-01"), EndDate: core.MustDate("2024-06-30")},
			{StartDate: core.MustDate("2024-07-01"), EndDate: core.MustDate("2024-12-31")},
		},
	}
	p.Heads.Set("H", []decimal.Decimal{amt("1000"), amt("1200")})
	p.Heads.Set("Travel", []decimal.Decimal{amt("50"), amt("50")})
	p.NegativeHeads = []string{"Travel"}
	v, err := h.funds.CreateProject(context.Background(), p)
	require.NoError(t, err)
	return v
}

func (h *harness) expense(t *testing.T, amount string, settle core.Settlement) uuid.UUID {
	t.Helper()
	e := &core.Expense{Reason: "item", Amount: amt(amount), Settlement: settle}
	require.NoError(t, h.expenses.CreateExpense(context.Background(), e))
	return e.ID
}

func TestCreateProjectValidatesSeries(t *testing.T) {
	h := newHarness(t, "2024-03-01")
	p := &core.Project{Name: "Bad", Type: core.Yearly,
		StartDate: core.MustDate("2023-06-01"), EndDate: core.MustDate("2025-05-31")}
	p.Heads.Set("H", []decimal.Decimal{amt("1")})
	_, err := h.funds.CreateProject(context.Background(), p)
	assert.ErrorIs(t, err, core.ErrValidation)

	v := h.invoiceProject(t)
	assert.Equal(t, 0, v.CurrentIndex)
	assert.Equal(t, 2, v.PeriodCount)
	assert.Equal(t, "Installment 1", v.Period)
}

func TestReimbursementRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "2024-03-01")
	v := h.invoiceProject(t)
	e := h.expense(t, "300", core.SettleNone)

	rb, err := h.expenses.FileReimbursement(ctx, ReimbursementRequest{
		ProjectID: v.ID, ProjectHead: "H", ExpenseIDs: []uuid.UUID{e},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, rb.YearOrInstallment)
	assert.True(t, rb.TotalAmount.Equal(amt("300")))

	totals, idx, err := h.funds.TotalExpenses(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Len(t, totals, 1)
	assert.True(t, totals["H"].Equal(amt("300")))
	assert.Contains(t, h.events.kinds(), amqp.EventReimbursement)
}

func TestCarryForwardScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "2024-03-01")
	v := h.invoiceProject(t)
	e := h.expense(t, "300", core.SettleNone)
	_, err := h.expenses.FileReimbursement(ctx, ReimbursementRequest{ProjectID: v.ID, ProjectHead: "H", ExpenseIDs: []uuid.UUID{e}})
	require.NoError(t, err)

	// warm the cache so the carry has to invalidate it
	_, _, err = h.funds.TotalExpenses(ctx, v.ID)
	require.NoError(t, err)

	after, err := h.funds.CarryForward(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.CurrentIndex)
	assert.True(t, after.Carry("H", 0).Decimal.Equal(amt("700")))

	totals, idx, err := h.funds.TotalExpenses(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Empty(t, totals)

	b, err := h.funds.ProjectBalance(ctx, v.ID)
	require.NoError(t, err)
	line, _ := b.Head("H")
	assert.True(t, line.Remaining.Equal(amt("1900")))

	_, err = h.funds.SetOverride(ctx, v.ID, 0)
	assert.ErrorIs(t, err, funds.ErrCarryRecorded)

	_, err = h.funds.CarryForward(ctx, v.ID)
	assert.ErrorIs(t, err, funds.ErrLastPeriod)

	assert.Equal(t, []amqp.EventKind{amqp.EventReimbursement, amqp.EventCarryForward}, h.events.kinds())
}

func TestOverrideSetAndClear(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "2024-03-01")
	v := h.invoiceProject(t)

	set, err := h.funds.SetOverride(ctx, v.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, set.CurrentIndex)

	_, err = h.funds.SetOverride(ctx, v.ID, 1)
	assert.ErrorIs(t, err, funds.ErrRedundantOverride)

	cleared, err := h.funds.ClearOverride(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cleared.CurrentIndex)
	assert.Nil(t, cleared.Override)

	_, err = h.funds.ClearOverride(ctx, v.ID)
	assert.ErrorIs(t, err, funds.ErrNoOverride)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "2024-03-01")
	h.events.err = errors.New("broker down")
	v := h.invoiceProject(t)

	_, err := h.funds.SetOverride(ctx, v.ID, 1)
	require.NoError(t, err)
	got, err := h.funds.GetProject(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentIndex)
}

func TestNegativeHeadGuard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "2024-03-01")
	v := h.invoiceProject(t)

	big := h.expense(t, "1000.01", core.SettleNone)
	_, err := h.expenses.FileReimbursement(ctx, ReimbursementRequest{ProjectID: v.ID, ProjectHead: "H", ExpenseIDs: []uuid.UUID{big}})
	assert.ErrorIs(t, err, funds.ErrOverspend)
	assert.ErrorIs(t, err, core.ErrValidation)

	inst := &core.InstituteExpense{
		Expense:     core.Expense{Reason: "overhead", Amount: amt("75")},
		ProjectID:   v.ID,
		ProjectHead: "Travel",
	}
	require.NoError(t, h.expenses.FileInstituteExpense(ctx, inst), "Travel may go negative")
	assert.Equal(t, 0, inst.YearOrInstallment)

	b, err := h.funds.ProjectBalance(ctx, v.ID)
	require.NoError(t, err)
	travel, _ := b.Head("Travel")
	assert.True(t, travel.Remaining.Equal(amt("-25")))
}

func TestFilingRequiresOpenPeriodAndKnownHead(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "2025-02-01")
	v := h.invoiceProject(t)
	e := h.expense(t, "1", core.SettleNone)

	_, err := h.expenses.FileReimbursement(ctx, ReimbursementRequest{ProjectID: v.ID, ProjectHead: "H", ExpenseIDs: []uuid.UUID{e}})
	assert.ErrorIs(t, err, funds.ErrTimelineOver)

	_, err = h.expenses.FileReimbursement(ctx, ReimbursementRequest{ProjectID: v.ID, ProjectHead: "Ghost", ExpenseIDs: []uuid.UUID{e}})
	assert.ErrorIs(t, err, core.ErrUnknownHead)

	_, err = h.expenses.FileReimbursement(ctx, ReimbursementRequest{ProjectID: v.ID, ProjectHead: "H"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestReimbursedExpenseIsFrozen(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "2024-03-01")
	v := h.invoiceProject(t)
	id := h.expense(t, "10", core.SettleNone)
	_, err := h.expenses.FileReimbursement(ctx, ReimbursementRequest{ProjectID: v.ID, ProjectHead: "H", ExpenseIDs: []uuid.UUID{id}})
	require.NoError(t, err)

	reason := "changed"
	_, err = h.expenses.UpdateExpense(ctx, id, ExpensePatch{Reason: &reason})
	assert.ErrorIs(t, err, core.ErrReimbursedFixed)

	paid := true
	e, err := h.expenses.UpdateExpense(ctx, id, ExpensePatch{PaidStatus: &paid})
	require.NoError(t, err)
	assert.True(t, e.PaidStatus)

	_, err = h.expenses.FileReimbursement(ctx, ReimbursementRequest{ProjectID: v.ID, ProjectHead: "H", ExpenseIDs: []uuid.UUID{id}})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestPaidBatchAppendsAccountEntry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "2024-03-01")
	v := h.invoiceProject(t)

	a := h.expense(t, "40", core.SettleSavings)
	b := h.expense(t, "60", core.SettleCurrent)
	c := h.expense(t, "5", core.SettleSavings)
	rb1, err := h.expenses.FileReimbursement(ctx, ReimbursementRequest{ProjectID: v.ID, ProjectHead: "H", ExpenseIDs: []uuid.UUID{a, b}})
	require.NoError(t, err)
	rb2, err := h.expenses.FileReimbursement(ctx, ReimbursementRequest{ProjectID: v.ID, ProjectHead: "Travel", ExpenseIDs: []uuid.UUID{c}})
	require.NoError(t, err)

	res, err := h.expenses.SetReimbursementsPaid(ctx, []uuid.UUID{rb1.ID, rb2.ID}, true, "March batch")
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.True(t, res.Entry.Amount.Equal(amt("105")))
	assert.True(t, res.Entry.Transferable.Equal(amt("45")))
	assert.True(t, res.Entry.Credited)
	assert.Equal(t, core.AccountCurrent, res.Entry.Type)

	exp, err := h.store.GetExpense(ctx, a)
	require.NoError(t, err)
	assert.True(t, exp.PaidStatus)

	bal, err := h.expenses.AccountBalances(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Current.Equal(amt("105")))
	assert.True(t, bal.Transferable.Equal(amt("45")))

	_, err = h.expenses.SetReimbursementsPaid(ctx, []uuid.UUID{rb1.ID}, true, "")
	assert.ErrorIs(t, err, core.ErrValidation, "already paid")

	undo, err := h.expenses.SetReimbursementsPaid(ctx, []uuid.UUID{rb2.ID}, false, "reversal")
	require.NoError(t, err)
	assert.False(t, undo.Entry.Credited)

	_, err = h.expenses.SetReimbursementsPaid(ctx, []uuid.UUID{uuid.New()}, true, "")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateHeadsDropsCarryOfRemovedHeads(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "2024-03-01")
	v := h.invoiceProject(t)
	_, err := h.funds.CarryForward(ctx, v.ID)
	require.NoError(t, err)
	cur, err := h.funds.GetProject(ctx, v.ID)
	require.NoError(t, err)

	var heads core.SeriesMap[decimal.Decimal]
	heads.Set("H", []decimal.Decimal{amt("1000"), amt("1500")})
	upd, err := h.funds.UpdateHeads(ctx, v.ID, HeadsUpdate{Heads: heads, Version: cur.Version})
	require.NoError(t, err)
	assert.Equal(t, []string{"H"}, upd.CarryForward.Keys())
	assert.True(t, upd.Allocation("H", 1).Equal(amt("1500")))

	_, err = h.funds.UpdateHeads(ctx, v.ID, HeadsUpdate{Heads: heads, Version: cur.Version})
	assert.ErrorIs(t, err, core.ErrConflict)

	var short core.SeriesMap[decimal.Decimal]
	short.Set("H", []decimal.Decimal{amt("1")})
	_, err = h.funds.UpdateHeads(ctx, v.ID, HeadsUpdate{Heads: short})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestBalancesListing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "2024-03-01")
	h.invoiceProject(t)
	expired := &core.Project{Name: "Old", Type: core.Yearly,
		StartDate: core.MustDate("2020-04-01"), EndDate: core.MustDate("2021-03-31")}
	expired.Heads.Set("H", []decimal.Decimal{amt("1")})
	_, err := h.funds.CreateProject(ctx, expired)
	require.NoError(t, err)

	list, err := h.funds.Balances(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Imaging", list[0].Name)
}

func TestDeleteProject(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "2024-03-01")
	v := h.invoiceProject(t)
	e := h.expense(t, "1", core.SettleNone)
	_, err := h.expenses.FileReimbursement(ctx, ReimbursementRequest{ProjectID: v.ID, ProjectHead: "H", ExpenseIDs: []uuid.UUID{e}})
	require.NoError(t, err)
	assert.ErrorIs(t, h.funds.DeleteProject(ctx, v.ID), core.ErrIntegrity)

	fresh := h.invoiceProject(t)
	require.NoError(t, h.funds.DeleteProject(ctx, fresh.ID))
	_, err = h.funds.GetProject(ctx, fresh.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCachedTotalsFollowThePeriod(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "2024-03-01")
	v := h.invoiceProject(t)
	e := h.expense(t, "300", core.SettleNone)
	_, err := h.expenses.FileReimbursement(ctx, ReimbursementRequest{ProjectID: v.ID, ProjectHead: "H", ExpenseIDs: []uuid.UUID{e}})
	require.NoError(t, err)

	now := core.MustDate("2024-03-01").Time
	reader := NewFundService(h.store,
		WithClock(func() time.Time { return now }),
		WithTotalsCache(16, time.Hour),
	)
	totals, idx, err := reader.TotalExpenses(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.True(t, totals["H"].Equal(amt("300")))

	t.Run("date rollover", func(t *testing.T) {
		now = core.MustDate("2024-08-01").Time
		defer func() { now = core.MustDate("2024-03-01").Time }()
		totals, idx, err := reader.TotalExpenses(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
		assert.Empty(t, totals)
	})

	t.Run("override written by another service", func(t *testing.T) {
		_, err := h.funds.SetOverride(ctx, v.ID, 1)
		require.NoError(t, err)
		totals, idx, err := reader.TotalExpenses(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
		assert.Empty(t, totals)

		_, err = h.funds.ClearOverride(ctx, v.ID)
		require.NoError(t, err)
		totals, idx, err = reader.TotalExpenses(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
		assert.True(t, totals["H"].Equal(amt("300")))
	})
}
