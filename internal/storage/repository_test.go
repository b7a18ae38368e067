package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labfunds/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "labfunds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	var tick int
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	return repo
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func testProject() *core.Project {
	p := &core.Project{
		Name:      "Microscopy",
		Type:      core.Yearly,
		StartDate: core.MustDate("2023-06-01"),
		EndDate:   core.MustDate("2025-05-31"),
	}
	p.Heads.Set("Travel", []decimal.Decimal{d("10"), d("20"), d("30")})
	p.Heads.Set("Equipment", []decimal.Decimal{d("100.50"), d("200"), d("300")})
	p.NegativeHeads = []string{"Travel"}
	return p
}

func TestProjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	p := testProject()
	require.NoError(t, repo.CreateProject(ctx, p))
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, int64(1), p.Version)

	got, err := repo.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Microscopy", got.Name)
	assert.Equal(t, []string{"Travel", "Equipment"}, got.Heads.Keys())
	eq, _ := got.Heads.Get("Equipment")
	assert.True(t, eq[0].Equal(d("100.5")))
	assert.Equal(t, "2025-05-31", got.EndDate.String())
	assert.Nil(t, got.Override)
	assert.True(t, got.AllowsNegative("Travel"))

	_, err = repo.GetProject(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateProjectVersioning(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := testProject()
	require.NoError(t, repo.CreateProject(ctx, p))

	first, err := repo.GetProject(ctx, p.ID)
	require.NoError(t, err)
	second, err := repo.GetProject(ctx, p.ID)
	require.NoError(t, err)

	first.Override = &core.Override{Type: core.Yearly, Index: 1}
	first.CarryForward.Set("Travel", []decimal.NullDecimal{decimal.NewNullDecimal(d("-4.25")), {}})
	require.NoError(t, repo.UpdateProject(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Name = "stale"
	err = repo.UpdateProject(ctx, second)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, int64(1), second.Version)

	got, err := repo.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Microscopy", got.Name)
	require.NotNil(t, got.Override)
	assert.Equal(t, 1, got.Override.Index)
	assert.True(t, got.Carry("Travel", 0).Decimal.Equal(d("-4.25")))
	assert.False(t, got.Carry("Travel", 1).Valid)

	ghost := testProject()
	ghost.ID = uuid.New()
	assert.ErrorIs(t, repo.UpdateProject(ctx, ghost), core.ErrNotFound)
}

func TestSpendingTotalsByHead(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := testProject()
	require.NoError(t, repo.CreateProject(ctx, p))

	for _, amt := range []string{"1.10", "2.20"} {
		e := &core.InstituteExpense{
			Expense:           core.Expense{Reason: "overhead", Amount: d(amt)},
			ProjectID:         p.ID,
			ProjectHead:       "Equipment",
			YearOrInstallment: 0,
		}
		require.NoError(t, repo.CreateInstituteExpense(ctx, e))
	}
	other := &core.InstituteExpense{
		Expense:           core.Expense{Reason: "later", Amount: d("50")},
		ProjectID:         p.ID,
		ProjectHead:       "Equipment",
		YearOrInstallment: 1,
	}
	require.NoError(t, repo.CreateInstituteExpense(ctx, other))

	totals, err := repo.InstituteExpenseTotals(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.True(t, totals["Equipment"].Equal(d("3.30")))

	empty, err := repo.ReimbursementTotals(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	list, err := repo.ListInstituteExpenses(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestReimbursementLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := testProject()
	require.NoError(t, repo.CreateProject(ctx, p))

	e1 := &core.Expense{Reason: "train", Amount: d("12.50"), Settlement: core.SettleSavings}
	e2 := &core.Expense{Reason: "hotel", Amount: d("80")}
	require.NoError(t, repo.CreateExpense(ctx, e1))
	require.NoError(t, repo.CreateExpense(ctx, e2))

	rb := &core.Reimbursement{
		ProjectID:         p.ID,
		ProjectHead:       "Travel",
		YearOrInstallment: 1,
		ExpenseIDs:        []uuid.UUID{e1.ID, e2.ID},
		TotalAmount:       d("92.50"),
	}
	require.NoError(t, repo.CreateReimbursement(ctx, rb))

	got, err := repo.GetReimbursement(ctx, rb.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{e1.ID, e2.ID}, got.ExpenseIDs)
	assert.True(t, got.TotalAmount.Equal(d("92.5")))

	linked, err := repo.GetExpense(ctx, e1.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.ReimbursedID)
	assert.Equal(t, rb.ID, *linked.ReimbursedID)

	totals, err := repo.ReimbursementTotals(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.True(t, totals["Travel"].Equal(d("92.50")))

	again := &core.Reimbursement{
		ProjectID:   p.ID,
		ProjectHead: "Travel",
		ExpenseIDs:  []uuid.UUID{e1.ID},
		TotalAmount: d("12.50"),
	}
	err = repo.CreateReimbursement(ctx, again)
	assert.ErrorIs(t, err, core.ErrIntegrity)
	_, err = repo.GetReimbursement(ctx, again.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "failed filing is rolled back")

	entry := &core.AccountEntry{Type: core.AccountCurrent, Amount: d("92.50"), Transferable: d("12.50"), Remarks: "batch"}
	require.NoError(t, repo.SetReimbursementsPaid(ctx, []uuid.UUID{rb.ID}, true, entry))

	got, err = repo.GetReimbursement(ctx, rb.ID)
	require.NoError(t, err)
	assert.True(t, got.PaidStatus)
	paidExpense, err := repo.GetExpense(ctx, e2.ID)
	require.NoError(t, err)
	assert.True(t, paidExpense.PaidStatus)

	entries, err := repo.ListAccountEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Transferable.Equal(d("12.5")))

	err = repo.SetReimbursementsPaid(ctx, []uuid.UUID{rb.ID}, true, &core.AccountEntry{Type: core.AccountCurrent, Amount: d("92.50")})
	assert.ErrorIs(t, err, core.ErrConflict, "already paid")
	entries, err = repo.ListAccountEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "conflicting batch records no entry")

	err = repo.SetReimbursementsPaid(ctx, []uuid.UUID{rb.ID, uuid.New()}, false, nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
	got, _ = repo.GetReimbursement(ctx, rb.ID)
	assert.True(t, got.PaidStatus, "partial batch is rolled back")
}

func TestDeleteProjectGuard(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	empty := testProject()
	require.NoError(t, repo.CreateProject(ctx, empty))
	require.NoError(t, repo.DeleteProject(ctx, empty.ID))
	assert.ErrorIs(t, repo.DeleteProject(ctx, empty.ID), core.ErrNotFound)

	used := testProject()
	require.NoError(t, repo.CreateProject(ctx, used))
	require.NoError(t, repo.CreateReimbursement(ctx, &core.Reimbursement{
		ProjectID:   used.ID,
		ProjectHead: "Travel",
		TotalAmount: d("1"),
	}))
	assert.ErrorIs(t, repo.DeleteProject(ctx, used.ID), core.ErrIntegrity)
}

func TestUpdateExpenseAndList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	e := &core.Expense{Reason: "pipettes", Category: "lab", Amount: d("7")}
	require.NoError(t, repo.CreateExpense(ctx, e))

	e.PaidStatus = true
	e.Settlement = core.SettleCurrent
	require.NoError(t, repo.UpdateExpense(ctx, e))

	all, err := repo.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].PaidStatus)
	assert.Equal(t, core.SettleCurrent, all[0].Settlement)

	missing := &core.Expense{ID: uuid.New(), Reason: "x", Amount: d("1")}
	assert.ErrorIs(t, repo.UpdateExpense(ctx, missing), core.ErrNotFound)
}

func TestListProjectsInCreationOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		p := testProject()
		require.NoError(t, repo.CreateProject(ctx, p))
		ids = append(ids, p.ID)
	}
	list, err := repo.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := range list {
		assert.Equal(t, ids[i], list[i].ID)
	}
}
