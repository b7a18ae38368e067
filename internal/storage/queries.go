package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var items []T
	for rows.Next() {
		i, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// projects

const projectColumns = `id, name, project_type, start_date, end_date, installments, project_heads,
    carry_forward, override_type, override_index, negative_heads, version, created_at, updated_at`

func scanProject(s scanner) (Project, error) {
	var i Project
	err := s.Scan(
		&i.ID, &i.Name, &i.ProjectType, &i.StartDate, &i.EndDate, &i.Installments, &i.ProjectHeads,
		&i.CarryForward, &i.OverrideType, &i.OverrideIndex, &i.NegativeHeads, &i.Version, &i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

const createProject = `INSERT INTO projects (` + projectColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateProject(ctx context.Context, arg Project) error {
	_, err := q.db.ExecContext(ctx, createProject,
		arg.ID, arg.Name, arg.ProjectType, arg.StartDate, arg.EndDate, arg.Installments, arg.ProjectHeads,
		arg.CarryForward, arg.OverrideType, arg.OverrideIndex, arg.NegativeHeads, arg.Version, arg.CreatedAt, arg.UpdatedAt,
	)
	return err
}

const getProject = `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

func (q *Queries) GetProject(ctx context.Context, id string) (Project, error) {
	return scanProject(q.db.QueryRowContext(ctx, getProject, id))
}

const listProjects = `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at, id`

func (q *Queries) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := q.db.QueryContext(ctx, listProjects)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProject)
}

const updateProject = `UPDATE projects
SET name = ?, project_type = ?, start_date = ?, end_date = ?, installments = ?, project_heads = ?,
    carry_forward = ?, override_type = ?, override_index = ?, negative_heads = ?,
    version = version + 1, updated_at = ?
WHERE id = ? AND version = ?`

// UpdateProject returns the number of rows changed; zero means the id is
// unknown or the version is stale.
func (q *Queries) UpdateProject(ctx context.Context, arg Project) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateProject,
		arg.Name, arg.ProjectType, arg.StartDate, arg.EndDate, arg.Installments, arg.ProjectHeads,
		arg.CarryForward, arg.OverrideType, arg.OverrideIndex, arg.NegativeHeads,
		arg.UpdatedAt, arg.ID, arg.Version,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteProject = `DELETE FROM projects WHERE id = ?`

func (q *Queries) DeleteProject(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteProject, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countProjectSpending = `SELECT
    (SELECT COUNT(*) FROM reimbursements WHERE project_id = ?1) +
    (SELECT COUNT(*) FROM institute_expenses WHERE project_id = ?1)`

func (q *Queries) CountProjectSpending(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countProjectSpending, projectID).Scan(&n)
	return n, err
}

// expenses

const expenseColumns = `id, reason, category, amount_cents, paid_by, settlement, reimbursed_id,
    paid_status, created_at, updated_at`

func scanExpense(s scanner) (Expense, error) {
	var i Expense
	err := s.Scan(
		&i.ID, &i.Reason, &i.Category, &i.AmountCents, &i.PaidBy, &i.Settlement, &i.ReimbursedID,
		&i.PaidStatus, &i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

const createExpense = `INSERT INTO expenses (` + expenseColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateExpense(ctx context.Context, arg Expense) error {
	_, err := q.db.ExecContext(ctx, createExpense,
		arg.ID, arg.Reason, arg.Category, arg.AmountCents, arg.PaidBy, arg.Settlement, arg.ReimbursedID,
		arg.PaidStatus, arg.CreatedAt, arg.UpdatedAt,
	)
	return err
}

const getExpense = `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id string) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, id))
}

const listExpenses = `SELECT ` + expenseColumns + ` FROM expenses ORDER BY created_at DESC, id`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanExpense)
}

const listExpensesByReimbursement = `SELECT ` + expenseColumns + `
FROM expenses WHERE reimbursed_id = ? ORDER BY created_at, id`

func (q *Queries) ListExpensesByReimbursement(ctx context.Context, reimbursedID string) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByReimbursement, reimbursedID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanExpense)
}

const updateExpense = `UPDATE expenses
SET reason = ?, category = ?, amount_cents = ?, paid_by = ?, settlement = ?, paid_status = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateExpense(ctx context.Context, arg Expense) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateExpense,
		arg.Reason, arg.Category, arg.AmountCents, arg.PaidBy, arg.Settlement, arg.PaidStatus, arg.UpdatedAt, arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type AttachExpenseParams struct {
	ReimbursedID string
	UpdatedAt    string
	ID           string
}

const attachExpense = `UPDATE expenses SET reimbursed_id = ?, updated_at = ?
WHERE id = ? AND reimbursed_id IS NULL`

// AttachExpense links an unreimbursed expense; zero rows means it is
// missing or already linked.
func (q *Queries) AttachExpense(ctx context.Context, arg AttachExpenseParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, attachExpense, arg.ReimbursedID, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type SetPaidParams struct {
	PaidStatus int64
	UpdatedAt  string
	ID         string
}

const setExpensesPaidByReimbursement = `UPDATE expenses SET paid_status = ?, updated_at = ?
WHERE reimbursed_id = ?`

func (q *Queries) SetExpensesPaidByReimbursement(ctx context.Context, arg SetPaidParams) error {
	_, err := q.db.ExecContext(ctx, setExpensesPaidByReimbursement, arg.PaidStatus, arg.UpdatedAt, arg.ID)
	return err
}

// institute expenses

const instituteColumns = `id, project_id, project_head, year_or_installment, overhead_percentage, reason,
    category, amount_cents, paid_by, settlement, paid_status, created_at, updated_at`

func scanInstituteExpense(s scanner) (InstituteExpense, error) {
	var i InstituteExpense
	err := s.Scan(
		&i.ID, &i.ProjectID, &i.ProjectHead, &i.YearOrInstallment, &i.OverheadPercentage, &i.Reason,
		&i.Category, &i.AmountCents, &i.PaidBy, &i.Settlement, &i.PaidStatus, &i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

const createInstituteExpense = `INSERT INTO institute_expenses (` + instituteColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateInstituteExpense(ctx context.Context, arg InstituteExpense) error {
	_, err := q.db.ExecContext(ctx, createInstituteExpense,
		arg.ID, arg.ProjectID, arg.ProjectHead, arg.YearOrInstallment, arg.OverheadPercentage, arg.Reason,
		arg.Category, arg.AmountCents, arg.PaidBy, arg.Settlement, arg.PaidStatus, arg.CreatedAt, arg.UpdatedAt,
	)
	return err
}

const listInstituteExpensesByProject = `SELECT ` + instituteColumns + `
FROM institute_expenses WHERE project_id = ? ORDER BY created_at, id`

func (q *Queries) ListInstituteExpensesByProject(ctx context.Context, projectID string) ([]InstituteExpense, error) {
	rows, err := q.db.QueryContext(ctx, listInstituteExpensesByProject, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanInstituteExpense)
}

type PeriodParams struct {
	ProjectID         string
	YearOrInstallment int64
}

func scanHeadTotal(s scanner) (HeadTotal, error) {
	var i HeadTotal
	err := s.Scan(&i.ProjectHead, &i.TotalCents)
	return i, err
}

const sumInstituteExpensesByHead = `SELECT project_head, SUM(amount_cents)
FROM institute_expenses
WHERE project_id = ? AND year_or_installment = ?
GROUP BY project_head`

func (q *Queries) SumInstituteExpensesByHead(ctx context.Context, arg PeriodParams) ([]HeadTotal, error) {
	rows, err := q.db.QueryContext(ctx, sumInstituteExpensesByHead, arg.ProjectID, arg.YearOrInstallment)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanHeadTotal)
}

// reimbursements

const reimbursementColumns = `id, project_id, project_head, year_or_installment, total_amount_cents,
    paid_status, remarks, created_at, updated_at`

func scanReimbursement(s scanner) (Reimbursement, error) {
	var i Reimbursement
	err := s.Scan(
		&i.ID, &i.ProjectID, &i.ProjectHead, &i.YearOrInstallment, &i.TotalAmountCents,
		&i.PaidStatus, &i.Remarks, &i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

const createReimbursement = `INSERT INTO reimbursements (` + reimbursementColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateReimbursement(ctx context.Context, arg Reimbursement) error {
	_, err := q.db.ExecContext(ctx, createReimbursement,
		arg.ID, arg.ProjectID, arg.ProjectHead, arg.YearOrInstallment, arg.TotalAmountCents,
		arg.PaidStatus, arg.Remarks, arg.CreatedAt, arg.UpdatedAt,
	)
	return err
}

const getReimbursement = `SELECT ` + reimbursementColumns + ` FROM reimbursements WHERE id = ?`

func (q *Queries) GetReimbursement(ctx context.Context, id string) (Reimbursement, error) {
	return scanReimbursement(q.db.QueryRowContext(ctx, getReimbursement, id))
}

const listReimbursementsByProject = `SELECT ` + reimbursementColumns + `
FROM reimbursements WHERE project_id = ? ORDER BY created_at, id`

func (q *Queries) ListReimbursementsByProject(ctx context.Context, projectID string) ([]Reimbursement, error) {
	rows, err := q.db.QueryContext(ctx, listReimbursementsByProject, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReimbursement)
}

const sumReimbursementsByHead = `SELECT project_head, SUM(total_amount_cents)
FROM reimbursements
WHERE project_id = ? AND year_or_installment = ?
GROUP BY project_head`

func (q *Queries) SumReimbursementsByHead(ctx context.Context, arg PeriodParams) ([]HeadTotal, error) {
	rows, err := q.db.QueryContext(ctx, sumReimbursementsByHead, arg.ProjectID, arg.YearOrInstallment)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanHeadTotal)
}

const setReimbursementPaid = `UPDATE reimbursements SET paid_status = ?, updated_at = ?
WHERE id = ? AND paid_status != ?`

// SetReimbursementPaid only touches a row whose status actually changes.
func (q *Queries) SetReimbursementPaid(ctx context.Context, arg SetPaidParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, setReimbursementPaid, arg.PaidStatus, arg.UpdatedAt, arg.ID, arg.PaidStatus)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// account entries

const accountEntryColumns = `id, amount_cents, account_type, credited, transferable_cents, remarks, created_at`

func scanAccountEntry(s scanner) (AccountEntry, error) {
	var i AccountEntry
	err := s.Scan(&i.ID, &i.AmountCents, &i.AccountType, &i.Credited, &i.TransferableCents, &i.Remarks, &i.CreatedAt)
	return i, err
}

const createAccountEntry = `INSERT INTO account_entries (` + accountEntryColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateAccountEntry(ctx context.Context, arg AccountEntry) error {
	_, err := q.db.ExecContext(ctx, createAccountEntry,
		arg.ID, arg.AmountCents, arg.AccountType, arg.Credited, arg.TransferableCents, arg.Remarks, arg.CreatedAt,
	)
	return err
}

const listAccountEntries = `SELECT ` + accountEntryColumns + ` FROM account_entries ORDER BY created_at, id`

func (q *Queries) ListAccountEntries(ctx context.Context) ([]AccountEntry, error) {
	rows, err := q.db.QueryContext(ctx, listAccountEntries)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAccountEntry)
}
