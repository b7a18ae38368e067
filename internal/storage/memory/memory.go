// Package memory is an in-process store with the same behaviour as the
// SQLite repository. It backs the memory data backend and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"labfunds/internal/core"
)

type Store struct {
	mu sync.RWMutex

	projects      map[uuid.UUID]*core.Project
	projectOrder  []uuid.UUID
	expenses      map[uuid.UUID]*core.Expense
	expenseOrder  []uuid.UUID
	institute     []core.InstituteExpense
	reimbursement map[uuid.UUID]*core.Reimbursement
	rbOrder       []uuid.UUID
	entries       []core.AccountEntry

	now func() time.Time
}

func New() *Store {
	return &Store{
		projects:      make(map[uuid.UUID]*core.Project),
		expenses:      make(map[uuid.UUID]*core.Expense),
		reimbursement: make(map[uuid.UUID]*core.Reimbursement),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error { return nil }

// Projects

func (s *Store) CreateProject(_ context.Context, p *core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, ok := s.projects[p.ID]; ok {
		return fmt.Errorf("project %s exists: %w", p.ID, core.ErrConflict)
	}
	now := s.now()
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = now, now
	s.projects[p.ID] = p.Clone()
	s.projectOrder = append(s.projectOrder, p.ID)
	return nil
}

func (s *Store) GetProject(_ context.Context, id uuid.UUID) (*core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, core.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *Store) ListProjects(context.Context) ([]core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Project, 0, len(s.projectOrder))
	for _, id := range s.projectOrder {
		out = append(out, *s.projects[id].Clone())
	}
	return out, nil
}

func (s *Store) UpdateProject(_ context.Context, p *core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.projects[p.ID]
	if !ok {
		return fmt.Errorf("project %s: %w", p.ID, core.ErrNotFound)
	}
	if cur.Version != p.Version {
		return fmt.Errorf("project %s changed since version %d: %w", p.ID, p.Version, core.ErrConflict)
	}
	p.Version++
	p.UpdatedAt = s.now()
	s.projects[p.ID] = p.Clone()
	return nil
}

func (s *Store) DeleteProject(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, core.ErrNotFound)
	}
	n := 0
	for _, rb := range s.reimbursement {
		if rb.ProjectID == id {
			n++
		}
	}
	for _, e := range s.institute {
		if e.ProjectID == id {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("project %s has %d filed records: %w", id, n, core.ErrIntegrity)
	}
	delete(s.projects, id)
	s.projectOrder = without(s.projectOrder, id)
	return nil
}

// Expenses

func (s *Store) CreateExpense(_ context.Context, e *core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := s.now()
	e.CreatedAt, e.UpdatedAt = now, now
	cp := *e
	s.expenses[e.ID] = &cp
	s.expenseOrder = append(s.expenseOrder, e.ID)
	return nil
}

func (s *Store) GetExpense(_ context.Context, id uuid.UUID) (*core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

// ListExpenses returns the newest expenses first.
func (s *Store) ListExpenses(context.Context) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, 0, len(s.expenseOrder))
	for i := len(s.expenseOrder) - 1; i >= 0; i-- {
		out = append(out, *s.expenses[s.expenseOrder[i]])
	}
	return out, nil
}

func (s *Store) UpdateExpense(_ context.Context, e *core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.expenses[e.ID]
	if !ok {
		return fmt.Errorf("expense %s: %w", e.ID, core.ErrNotFound)
	}
	e.UpdatedAt = s.now()
	cp := *e
	cp.ReimbursedID = cur.ReimbursedID
	cp.CreatedAt = cur.CreatedAt
	s.expenses[e.ID] = &cp
	return nil
}

func (s *Store) ReimbursementExpenses(_ context.Context, reimbursementID uuid.UUID) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Expense
	for _, id := range s.expenseOrder {
		e := s.expenses[id]
		if e.ReimbursedID != nil && *e.ReimbursedID == reimbursementID {
			out = append(out, *e)
		}
	}
	return out, nil
}

// Institute expenses

func (s *Store) CreateInstituteExpense(_ context.Context, e *core.InstituteExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[e.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", e.ProjectID, core.ErrIntegrity)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := s.now()
	e.CreatedAt, e.UpdatedAt = now, now
	s.institute = append(s.institute, *e)
	return nil
}

func (s *Store) ListInstituteExpenses(_ context.Context, projectID uuid.UUID) ([]core.InstituteExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.InstituteExpense
	for _, e := range s.institute {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) InstituteExpenseTotals(_ context.Context, projectID uuid.UUID, index int) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal)
	for _, e := range s.institute {
		if e.ProjectID == projectID && e.YearOrInstallment == index {
			out[e.ProjectHead] = out[e.ProjectHead].Add(e.Amount)
		}
	}
	return out, nil
}

// Reimbursements

func (s *Store) CreateReimbursement(_ context.Context, rb *core.Reimbursement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[rb.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", rb.ProjectID, core.ErrIntegrity)
	}
	for _, id := range rb.ExpenseIDs {
		e, ok := s.expenses[id]
		if !ok || e.ReimbursedID != nil {
			return fmt.Errorf("expense %s missing or already reimbursed: %w", id, core.ErrIntegrity)
		}
	}
	if rb.ID == uuid.Nil {
		rb.ID = uuid.New()
	}
	now := s.now()
	rb.CreatedAt, rb.UpdatedAt = now, now
	rbID := rb.ID
	for _, id := range rb.ExpenseIDs {
		s.expenses[id].ReimbursedID = &rbID
		s.expenses[id].UpdatedAt = now
	}
	cp := *rb
	cp.ExpenseIDs = append([]uuid.UUID(nil), rb.ExpenseIDs...)
	s.reimbursement[rb.ID] = &cp
	s.rbOrder = append(s.rbOrder, rb.ID)
	return nil
}

func (s *Store) GetReimbursement(_ context.Context, id uuid.UUID) (*core.Reimbursement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rb, ok := s.reimbursement[id]
	if !ok {
		return nil, fmt.Errorf("reimbursement %s: %w", id, core.ErrNotFound)
	}
	cp := *rb
	cp.ExpenseIDs = append([]uuid.UUID(nil), rb.ExpenseIDs...)
	return &cp, nil
}

func (s *Store) ListReimbursements(_ context.Context, projectID uuid.UUID) ([]core.Reimbursement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Reimbursement
	for _, id := range s.rbOrder {
		rb := s.reimbursement[id]
		if rb.ProjectID == projectID {
			cp := *rb
			cp.ExpenseIDs = append([]uuid.UUID(nil), rb.ExpenseIDs...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (s *Store) ReimbursementTotals(_ context.Context, projectID uuid.UUID, index int) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal)
	for _, rb := range s.reimbursement {
		if rb.ProjectID == projectID && rb.YearOrInstallment == index {
			out[rb.ProjectHead] = out[rb.ProjectHead].Add(rb.TotalAmount)
		}
	}
	return out, nil
}

func (s *Store) SetReimbursementsPaid(_ context.Context, ids []uuid.UUID, paid bool, entry *core.AccountEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		rb, ok := s.reimbursement[id]
		if !ok {
			return fmt.Errorf("reimbursement %s: %w", id, core.ErrNotFound)
		}
		if rb.PaidStatus == paid {
			return fmt.Errorf("reimbursement %s already has paid=%t: %w", id, paid, core.ErrConflict)
		}
	}
	now := s.now()
	for _, id := range ids {
		rb := s.reimbursement[id]
		rb.PaidStatus = paid
		rb.UpdatedAt = now
		for _, e := range s.expenses {
			if e.ReimbursedID != nil && *e.ReimbursedID == id {
				e.PaidStatus = paid
				e.UpdatedAt = now
			}
		}
	}
	if entry != nil {
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		entry.CreatedAt = now
		s.entries = append(s.entries, *entry)
	}
	return nil
}

// Accounts

func (s *Store) AppendAccountEntry(_ context.Context, e *core.AccountEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = s.now()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *Store) ListAccountEntries(context.Context) ([]core.AccountEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.AccountEntry(nil), s.entries...), nil
}

func without(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
