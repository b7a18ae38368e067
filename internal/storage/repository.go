package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"labfunds/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps multi-statement transactions from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func notFound(err error, what string, id uuid.UUID) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

// Projects

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *core.Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := r.now()
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = now, now

	row, err := projectRow(p)
	if err != nil {
		return err
	}
	if err := r.queries.CreateProject(ctx, row); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	slog.InfoContext(ctx, "Project saved to SQLite",
		"id", p.ID,
		"name", p.Name,
		"type", p.Type,
		"heads", p.Heads.Len())
	return nil
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id uuid.UUID) (*core.Project, error) {
	row, err := r.queries.GetProject(ctx, id.String())
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return row.toCore()
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.queries.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := make([]core.Project, 0, len(rows))
	for _, row := range rows {
		p, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// UpdateProject writes p only if nobody changed it since it was read.
func (r *SQLiteRepository) UpdateProject(ctx context.Context, p *core.Project) error {
	updated := r.now()
	prev := p.UpdatedAt
	p.UpdatedAt = updated
	row, err := projectRow(p)
	if err != nil {
		p.UpdatedAt = prev
		return err
	}
	n, err := r.queries.UpdateProject(ctx, row)
	if err != nil {
		p.UpdatedAt = prev
		return fmt.Errorf("update project: %w", err)
	}
	if n == 0 {
		p.UpdatedAt = prev
		if _, err := r.queries.GetProject(ctx, row.ID); err != nil {
			return notFound(err, "project", p.ID)
		}
		return fmt.Errorf("project %s changed since version %d: %w", p.ID, p.Version, core.ErrConflict)
	}
	p.Version++

	slog.InfoContext(ctx, "Project updated",
		"id", p.ID,
		"version", p.Version)
	return nil
}

// DeleteProject refuses to remove projects that already carry spending.
func (r *SQLiteRepository) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return r.withTx(ctx, func(q *Queries) error {
		n, err := q.CountProjectSpending(ctx, id.String())
		if err != nil {
			return fmt.Errorf("count project spending: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("project %s has %d filed records: %w", id, n, core.ErrIntegrity)
		}
		deleted, err := q.DeleteProject(ctx, id.String())
		if err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		if deleted == 0 {
			return fmt.Errorf("project %s: %w", id, core.ErrNotFound)
		}
		return nil
	})
}

// Expenses

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e *core.Expense) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := r.now()
	e.CreatedAt, e.UpdatedAt = now, now
	if err := r.queries.CreateExpense(ctx, expenseRow(e)); err != nil {
		return fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"reason", e.Reason,
		"amount", core.FormatAmount(e.Amount))
	return nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id uuid.UUID) (*core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id.String())
	if err != nil {
		return nil, notFound(err, "expense", id)
	}
	e, err := row.toCore()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return convertAll(rows, Expense.toCore)
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e *core.Expense) error {
	e.UpdatedAt = r.now()
	n, err := r.queries.UpdateExpense(ctx, expenseRow(e))
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", e.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ReimbursementExpenses(ctx context.Context, reimbursementID uuid.UUID) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesByReimbursement(ctx, reimbursementID.String())
	if err != nil {
		return nil, fmt.Errorf("list reimbursement expenses: %w", err)
	}
	return convertAll(rows, Expense.toCore)
}

// Institute expenses

func (r *SQLiteRepository) CreateInstituteExpense(ctx context.Context, e *core.InstituteExpense) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := r.now()
	e.CreatedAt, e.UpdatedAt = now, now
	if err := r.queries.CreateInstituteExpense(ctx, instituteRow(e)); err != nil {
		return fmt.Errorf("create institute expense: %w", err)
	}

	slog.InfoContext(ctx, "Institute expense saved to SQLite",
		"id", e.ID,
		"project_id", e.ProjectID,
		"head", e.ProjectHead,
		"period", e.YearOrInstallment)
	return nil
}

func (r *SQLiteRepository) ListInstituteExpenses(ctx context.Context, projectID uuid.UUID) ([]core.InstituteExpense, error) {
	rows, err := r.queries.ListInstituteExpensesByProject(ctx, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("list institute expenses: %w", err)
	}
	return convertAll(rows, InstituteExpense.toCore)
}

func (r *SQLiteRepository) InstituteExpenseTotals(ctx context.Context, projectID uuid.UUID, index int) (map[string]decimal.Decimal, error) {
	rows, err := r.queries.SumInstituteExpensesByHead(ctx, PeriodParams{
		ProjectID:         projectID.String(),
		YearOrInstallment: int64(index),
	})
	if err != nil {
		return nil, fmt.Errorf("sum institute expenses: %w", err)
	}
	return headTotals(rows), nil
}

// Reimbursements

// CreateReimbursement stores r and links its expenses in one transaction.
// Any expense that is missing or already reimbursed aborts the whole filing.
func (r *SQLiteRepository) CreateReimbursement(ctx context.Context, rb *core.Reimbursement) error {
	if rb.ID == uuid.Nil {
		rb.ID = uuid.New()
	}
	now := r.now()
	rb.CreatedAt, rb.UpdatedAt = now, now

	err := r.withTx(ctx, func(q *Queries) error {
		if err := q.CreateReimbursement(ctx, reimbursementRow(rb)); err != nil {
			return fmt.Errorf("create reimbursement: %w", err)
		}
		for _, id := range rb.ExpenseIDs {
			n, err := q.AttachExpense(ctx, AttachExpenseParams{
				ReimbursedID: rb.ID.String(),
				UpdatedAt:    formatTime(now),
				ID:           id.String(),
			})
			if err != nil {
				return fmt.Errorf("attach expense: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("expense %s missing or already reimbursed: %w", id, core.ErrIntegrity)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Reimbursement saved to SQLite",
		"id", rb.ID,
		"project_id", rb.ProjectID,
		"head", rb.ProjectHead,
		"expenses", len(rb.ExpenseIDs),
		"total", core.FormatAmount(rb.TotalAmount))
	return nil
}

func (r *SQLiteRepository) GetReimbursement(ctx context.Context, id uuid.UUID) (*core.Reimbursement, error) {
	row, err := r.queries.GetReimbursement(ctx, id.String())
	if err != nil {
		return nil, notFound(err, "reimbursement", id)
	}
	rb, err := row.toCore()
	if err != nil {
		return nil, err
	}
	if err := r.loadExpenseIDs(ctx, &rb); err != nil {
		return nil, err
	}
	return &rb, nil
}

func (r *SQLiteRepository) ListReimbursements(ctx context.Context, projectID uuid.UUID) ([]core.Reimbursement, error) {
	rows, err := r.queries.ListReimbursementsByProject(ctx, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("list reimbursements: %w", err)
	}
	out, err := convertAll(rows, Reimbursement.toCore)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadExpenseIDs(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *SQLiteRepository) loadExpenseIDs(ctx context.Context, rb *core.Reimbursement) error {
	expenses, err := r.ReimbursementExpenses(ctx, rb.ID)
	if err != nil {
		return err
	}
	rb.ExpenseIDs = make([]uuid.UUID, len(expenses))
	for i, e := range expenses {
		rb.ExpenseIDs[i] = e.ID
	}
	return nil
}

func (r *SQLiteRepository) ReimbursementTotals(ctx context.Context, projectID uuid.UUID, index int) (map[string]decimal.Decimal, error) {
	rows, err := r.queries.SumReimbursementsByHead(ctx, PeriodParams{
		ProjectID:         projectID.String(),
		YearOrInstallment: int64(index),
	})
	if err != nil {
		return nil, fmt.Errorf("sum reimbursements: %w", err)
	}
	return headTotals(rows), nil
}

// SetReimbursementsPaid flips the paid status of every reimbursement in ids
// and of their expenses, and appends entry to the account log, atomically.
// A reimbursement already in the requested state fails the whole batch with
// core.ErrConflict, so concurrent callers cannot both record the payment.
func (r *SQLiteRepository) SetReimbursementsPaid(ctx context.Context, ids []uuid.UUID, paid bool, entry *core.AccountEntry) error {
	now := r.now()
	if entry != nil {
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		entry.CreatedAt = now
	}
	err := r.withTx(ctx, func(q *Queries) error {
		for _, id := range ids {
			arg := SetPaidParams{PaidStatus: boolInt(paid), UpdatedAt: formatTime(now), ID: id.String()}
			n, err := q.SetReimbursementPaid(ctx, arg)
			if err != nil {
				return fmt.Errorf("set reimbursement paid: %w", err)
			}
			if n == 0 {
				if _, err := q.GetReimbursement(ctx, id.String()); err != nil {
					return notFound(err, "reimbursement", id)
				}
				return fmt.Errorf("reimbursement %s already has paid=%t: %w", id, paid, core.ErrConflict)
			}
			if err := q.SetExpensesPaidByReimbursement(ctx, arg); err != nil {
				return fmt.Errorf("set expenses paid: %w", err)
			}
		}
		if entry != nil {
			if err := q.CreateAccountEntry(ctx, accountEntryRow(entry)); err != nil {
				return fmt.Errorf("create account entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Reimbursements paid status updated",
		"count", len(ids),
		"paid", paid)
	return nil
}

// Accounts

func (r *SQLiteRepository) AppendAccountEntry(ctx context.Context, e *core.AccountEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = r.now()
	if err := r.queries.CreateAccountEntry(ctx, accountEntryRow(e)); err != nil {
		return fmt.Errorf("create account entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAccountEntries(ctx context.Context) ([]core.AccountEntry, error) {
	rows, err := r.queries.ListAccountEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list account entries: %w", err)
	}
	return convertAll(rows, AccountEntry.toCore)
}

func convertAll[R any, T any](rows []R, conv func(R) (T, error)) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		item, err := conv(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
