package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

const (
	Yearly  ProjectType = "yearly"
	Invoice ProjectType = "invoice"
)

const (
	SettleNone    Settlement = ""
	SettleCurrent Settlement = "Current"
	SettleSavings Settlement = "Savings"
)

type (
	ProjectType string

	// Settlement records which account an expense was paid back from.
	Settlement string

	// Date is a calendar day in UTC.
	Date struct {
		time.Time
	}

	Installment struct {
		StartDate Date `json:"start_date"`
		EndDate   Date `json:"end_date"`
	}

	// Override pins the current period index regardless of the calendar.
	Override struct {
		Type  ProjectType `json:"type"`
		Index int         `json:"index"`
	}

	Project struct {
		ID            uuid.UUID                      `json:"id"`
		Name          string                         `json:"name"`
		Type          ProjectType                    `json:"project_type"`
		StartDate     Date                           `json:"start_date"`
		EndDate       Date                           `json:"end_date"`
		Installments  []Installment                  `json:"installments"`
		Heads         SeriesMap[decimal.Decimal]     `json:"project_heads"`
		CarryForward  SeriesMap[decimal.NullDecimal] `json:"carry_forward"`
		Override      *Override                      `json:"override"`
		NegativeHeads []string                       `json:"negative_heads"`
		Version       int64                          `json:"version"`
		CreatedAt     time.Time                      `json:"created_at"`
		UpdatedAt     time.Time                      `json:"updated_at"`
	}

	Expense struct {
		ID           uuid.UUID       `json:"id"`
		Reason       string          `json:"reason"`
		Category     string          `json:"category"`
		Amount       decimal.Decimal `json:"amount"`
		PaidBy       string          `json:"paid_by"`
		Settlement   Settlement      `json:"settlement"`
		ReimbursedID *uuid.UUID      `json:"reimbursed_id"`
		PaidStatus   bool            `json:"paid_status"`
		CreatedAt    time.Time       `json:"created_at"`
		UpdatedAt    time.Time       `json:"updated_at"`
	}

	// InstituteExpense is charged straight to a project head.
	InstituteExpense struct {
		Expense
		ProjectID          uuid.UUID       `json:"project_id"`
		ProjectHead        string          `json:"project_head"`
		YearOrInstallment  int             `json:"year_or_installment"`
		OverheadPercentage decimal.Decimal `json:"overhead_percentage"`
	}

	Reimbursement struct {
		ID                uuid.UUID       `json:"id"`
		ProjectID         uuid.UUID       `json:"project_id"`
		ProjectHead       string          `json:"project_head"`
		YearOrInstallment int             `json:"year_or_installment"`
		ExpenseIDs        []uuid.UUID     `json:"expense_ids"`
		TotalAmount       decimal.Decimal `json:"total_amount"`
		PaidStatus        bool            `json:"paid_status"`
		Remarks           string          `json:"remarks"`
		CreatedAt         time.Time       `json:"created_at"`
		UpdatedAt         time.Time       `json:"updated_at"`
	}
)

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{t}, nil
}

func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string { return d.Format(DateLayout) }

// Before, After and Equal compare by day only.
func (d Date) Before(o Date) bool { return NewDate(d.Time).Time.Before(NewDate(o.Time).Time) }
func (d Date) After(o Date) bool  { return NewDate(d.Time).Time.After(NewDate(o.Time).Time) }
func (d Date) Equal(o Date) bool  { return NewDate(d.Time).Time.Equal(NewDate(o.Time).Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, data)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (t ProjectType) Valid() bool { return t == Yearly || t == Invoice }

func (s Settlement) Valid() bool {
	return s == SettleNone || s == SettleCurrent || s == SettleSavings
}

// Validate checks the fields that do not depend on the period count.
func (p *Project) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrEmptyName)
	}
	if !p.Type.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidType, p.Type))
	}
	switch p.Type {
	case Yearly:
		if p.StartDate.IsZero() || p.EndDate.IsZero() {
			errs = append(errs, fmt.Errorf("%w: start and end date are required", ErrInvalidDate))
		} else if p.EndDate.Before(p.StartDate) {
			errs = append(errs, fmt.Errorf("%w: end date before start date", ErrInvalidDate))
		}
	case Invoice:
		if len(p.Installments) == 0 {
			errs = append(errs, errors.New("invoice project needs at least one installment"))
		}
		for i, in := range p.Installments {
			if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate) {
				errs = append(errs, fmt.Errorf("%w: installment %d", ErrInvalidDate, i))
				continue
			}
			if i > 0 && !in.StartDate.After(p.Installments[i-1].EndDate) {
				errs = append(errs, fmt.Errorf("%w: installment %d overlaps the previous one", ErrInvalidDate, i))
			}
		}
	}
	if len(errs) > 0 {
		return Invalid(errors.Join(errs...))
	}
	return nil
}

// ValidateSeries checks the head and carry-forward series against the
// number of periods of the project.
func (p *Project) ValidateSeries(periods int) error {
	var errs []error
	if p.Heads.Len() == 0 {
		errs = append(errs, errors.New("project needs at least one head"))
	}
	for _, h := range p.Heads.Keys() {
		series, _ := p.Heads.Get(h)
		if strings.TrimSpace(h) == "" {
			errs = append(errs, errors.New("empty head name"))
		}
		if len(series) != periods {
			errs = append(errs, fmt.Errorf("head %q has %d allocations, want %d", h, len(series), periods))
		}
		for i, v := range series {
			if v.IsNegative() {
				errs = append(errs, fmt.Errorf("head %q allocation %d is negative", h, i))
			} else if err := checkCents(fmt.Sprintf("head %q allocation %d", h, i), v); err != nil {
				errs = append(errs, err)
			}
		}
	}
	carryLen := max(periods-1, 0)
	for _, h := range p.CarryForward.Keys() {
		if !p.Heads.Has(h) {
			errs = append(errs, fmt.Errorf("%w: carry forward for %q", ErrUnknownHead, h))
			continue
		}
		if series, _ := p.CarryForward.Get(h); len(series) != carryLen {
			errs = append(errs, fmt.Errorf("carry forward for %q has %d slots, want %d", h, len(series), carryLen))
		}
	}
	for _, h := range p.NegativeHeads {
		if !p.Heads.Has(h) {
			errs = append(errs, fmt.Errorf("%w: negative head %q", ErrUnknownHead, h))
		}
	}
	if p.Override != nil {
		if p.Override.Index < 0 || p.Override.Index >= periods {
			errs = append(errs, fmt.Errorf("override index %d outside [0,%d)", p.Override.Index, periods))
		}
	}
	if len(errs) > 0 {
		return Invalid(errors.Join(errs...))
	}
	return nil
}

// Allocation returns the sanctioned amount for head in period i, zero when
// either is unknown.
func (p *Project) Allocation(head string, i int) decimal.Decimal {
	series, ok := p.Heads.Get(head)
	if !ok || i < 0 || i >= len(series) {
		return decimal.Zero
	}
	return series[i]
}

// Carry returns the carry-forward slot for head at i. Missing heads and
// indexes past the end of the series read as unset.
func (p *Project) Carry(head string, i int) decimal.NullDecimal {
	series, ok := p.CarryForward.Get(head)
	if !ok || i < 0 || i >= len(series) {
		return decimal.NullDecimal{}
	}
	return series[i]
}

// AnyCarryAt reports whether some head has a recorded carry at i.
func (p *Project) AnyCarryAt(i int) bool {
	for _, h := range p.CarryForward.Keys() {
		if p.Carry(h, i).Valid {
			return true
		}
	}
	return false
}

func (p *Project) AllowsNegative(head string) bool {
	for _, h := range p.NegativeHeads {
		if h == head {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to mutate.
func (p *Project) Clone() *Project {
	c := *p
	c.Installments = append([]Installment(nil), p.Installments...)
	c.Heads = p.Heads.Clone()
	c.CarryForward = p.CarryForward.Clone()
	c.NegativeHeads = append([]string(nil), p.NegativeHeads...)
	if p.Override != nil {
		o := *p.Override
		c.Override = &o
	}
	return &c
}

func (e *Expense) Validate() error {
	var errs []error
	if strings.TrimSpace(e.Reason) == "" {
		errs = append(errs, ErrEmptyReason)
	}
	if !e.Amount.IsPositive() {
		errs = append(errs, ErrInvalidAmount)
	} else if err := checkCents("amount", e.Amount); err != nil {
		errs = append(errs, err)
	}
	if !e.Settlement.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidSettle, e.Settlement))
	}
	if len(errs) > 0 {
		return Invalid(errors.Join(errs...))
	}
	return nil
}

func (e *Expense) Reimbursed() bool { return e.ReimbursedID != nil }
