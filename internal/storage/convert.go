package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"labfunds/internal/core"
)

// timeLayout has fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func formatDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func parseDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func projectRow(p *core.Project) (Project, error) {
	installments, err := json.Marshal(p.Installments)
	if err != nil {
		return Project{}, fmt.Errorf("encode installments: %w", err)
	}
	heads, err := json.Marshal(p.Heads)
	if err != nil {
		return Project{}, fmt.Errorf("encode project heads: %w", err)
	}
	carry, err := json.Marshal(p.CarryForward)
	if err != nil {
		return Project{}, fmt.Errorf("encode carry forward: %w", err)
	}
	negative := p.NegativeHeads
	if negative == nil {
		negative = []string{}
	}
	negJSON, err := json.Marshal(negative)
	if err != nil {
		return Project{}, fmt.Errorf("encode negative heads: %w", err)
	}
	row := Project{
		ID:            p.ID.String(),
		Name:          p.Name,
		ProjectType:   string(p.Type),
		StartDate:     formatDate(p.StartDate),
		EndDate:       formatDate(p.EndDate),
		Installments:  string(installments),
		ProjectHeads:  string(heads),
		CarryForward:  string(carry),
		NegativeHeads: string(negJSON),
		Version:       p.Version,
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
	}
	if p.Override != nil {
		row.OverrideType = sql.NullString{String: string(p.Override.Type), Valid: true}
		row.OverrideIndex = sql.NullInt64{Int64: int64(p.Override.Index), Valid: true}
	}
	return row, nil
}

func (r Project) toCore() (*core.Project, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse project id: %w", err)
	}
	p := &core.Project{
		ID:      id,
		Name:    r.Name,
		Type:    core.ProjectType(r.ProjectType),
		Version: r.Version,
	}
	if p.StartDate, err = parseDate(r.StartDate); err != nil {
		return nil, err
	}
	if p.EndDate, err = parseDate(r.EndDate); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.Installments), &p.Installments); err != nil {
		return nil, fmt.Errorf("decode installments: %w", err)
	}
	if err := json.Unmarshal([]byte(r.ProjectHeads), &p.Heads); err != nil {
		return nil, fmt.Errorf("decode project heads: %w", err)
	}
	if err := json.Unmarshal([]byte(r.CarryForward), &p.CarryForward); err != nil {
		return nil, fmt.Errorf("decode carry forward: %w", err)
	}
	if err := json.Unmarshal([]byte(r.NegativeHeads), &p.NegativeHeads); err != nil {
		return nil, fmt.Errorf("decode negative heads: %w", err)
	}
	if r.OverrideIndex.Valid {
		p.Override = &core.Override{
			Type:  core.ProjectType(r.OverrideType.String),
			Index: int(r.OverrideIndex.Int64),
		}
	}
	if p.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func expenseRow(e *core.Expense) Expense {
	row := Expense{
		ID:          e.ID.String(),
		Reason:      e.Reason,
		Category:    e.Category,
		AmountCents: core.ToCents(e.Amount),
		PaidBy:      e.PaidBy,
		Settlement:  string(e.Settlement),
		PaidStatus:  boolInt(e.PaidStatus),
		CreatedAt:   formatTime(e.CreatedAt),
		UpdatedAt:   formatTime(e.UpdatedAt),
	}
	if e.ReimbursedID != nil {
		row.ReimbursedID = sql.NullString{String: e.ReimbursedID.String(), Valid: true}
	}
	return row
}

func (r Expense) toCore() (core.Expense, error) {
	e := core.Expense{
		Reason:     r.Reason,
		Category:   r.Category,
		Amount:     core.FromCents(r.AmountCents),
		PaidBy:     r.PaidBy,
		Settlement: core.Settlement(r.Settlement),
		PaidStatus: r.PaidStatus != 0,
	}
	var err error
	if e.ID, err = uuid.Parse(r.ID); err != nil {
		return e, fmt.Errorf("parse expense id: %w", err)
	}
	if r.ReimbursedID.Valid {
		rid, err := uuid.Parse(r.ReimbursedID.String)
		if err != nil {
			return e, fmt.Errorf("parse reimbursement id: %w", err)
		}
		e.ReimbursedID = &rid
	}
	if e.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return e, err
	}
	if e.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return e, err
	}
	return e, nil
}

func instituteRow(e *core.InstituteExpense) InstituteExpense {
	return InstituteExpense{
		ID:                 e.ID.String(),
		ProjectID:          e.ProjectID.String(),
		ProjectHead:        e.ProjectHead,
		YearOrInstallment:  int64(e.YearOrInstallment),
		OverheadPercentage: e.OverheadPercentage.String(),
		Reason:             e.Reason,
		Category:           e.Category,
		AmountCents:        core.ToCents(e.Amount),
		PaidBy:             e.PaidBy,
		Settlement:         string(e.Settlement),
		PaidStatus:         boolInt(e.PaidStatus),
		CreatedAt:          formatTime(e.CreatedAt),
		UpdatedAt:          formatTime(e.UpdatedAt),
	}
}

func (r InstituteExpense) toCore() (core.InstituteExpense, error) {
	base, err := Expense{
		ID:          r.ID,
		Reason:      r.Reason,
		Category:    r.Category,
		AmountCents: r.AmountCents,
		PaidBy:      r.PaidBy,
		Settlement:  r.Settlement,
		PaidStatus:  r.PaidStatus,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}.toCore()
	if err != nil {
		return core.InstituteExpense{}, err
	}
	e := core.InstituteExpense{
		Expense:           base,
		ProjectHead:       r.ProjectHead,
		YearOrInstallment: int(r.YearOrInstallment),
	}
	if e.ProjectID, err = uuid.Parse(r.ProjectID); err != nil {
		return e, fmt.Errorf("parse project id: %w", err)
	}
	if e.OverheadPercentage, err = decimal.NewFromString(r.OverheadPercentage); err != nil {
		return e, fmt.Errorf("parse overhead percentage: %w", err)
	}
	return e, nil
}

func reimbursementRow(r *core.Reimbursement) Reimbursement {
	return Reimbursement{
		ID:                r.ID.String(),
		ProjectID:         r.ProjectID.String(),
		ProjectHead:       r.ProjectHead,
		YearOrInstallment: int64(r.YearOrInstallment),
		TotalAmountCents:  core.ToCents(r.TotalAmount),
		PaidStatus:        boolInt(r.PaidStatus),
		Remarks:           r.Remarks,
		CreatedAt:         formatTime(r.CreatedAt),
		UpdatedAt:         formatTime(r.UpdatedAt),
	}
}

func (r Reimbursement) toCore() (core.Reimbursement, error) {
	out := core.Reimbursement{
		ProjectHead:       r.ProjectHead,
		YearOrInstallment: int(r.YearOrInstallment),
		TotalAmount:       core.FromCents(r.TotalAmountCents),
		PaidStatus:        r.PaidStatus != 0,
		Remarks:           r.Remarks,
	}
	var err error
	if out.ID, err = uuid.Parse(r.ID); err != nil {
		return out, fmt.Errorf("parse reimbursement id: %w", err)
	}
	if out.ProjectID, err = uuid.Parse(r.ProjectID); err != nil {
		return out, fmt.Errorf("parse project id: %w", err)
	}
	if out.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return out, err
	}
	if out.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return out, err
	}
	return out, nil
}

func accountEntryRow(e *core.AccountEntry) AccountEntry {
	return AccountEntry{
		ID:                e.ID.String(),
		AmountCents:       core.ToCents(e.Amount),
		AccountType:       string(e.Type),
		Credited:          boolInt(e.Credited),
		TransferableCents: core.ToCents(e.Transferable),
		Remarks:           e.Remarks,
		CreatedAt:         formatTime(e.CreatedAt),
	}
}

func (r AccountEntry) toCore() (core.AccountEntry, error) {
	out := core.AccountEntry{
		Amount:       core.FromCents(r.AmountCents),
		Type:         core.AccountType(r.AccountType),
		Credited:     r.Credited != 0,
		Transferable: core.FromCents(r.TransferableCents),
		Remarks:      r.Remarks,
	}
	var err error
	if out.ID, err = uuid.Parse(r.ID); err != nil {
		return out, fmt.Errorf("parse account entry id: %w", err)
	}
	if out.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return out, err
	}
	return out, nil
}

func headTotals(rows []HeadTotal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[r.ProjectHead] = core.FromCents(r.TotalCents)
	}
	return out
}
