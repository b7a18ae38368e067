package storage

import "database/sql"

// Row types mirror the tables one to one. Conversion to core types lives in
// convert.go.

type Project struct {
	ID            string
	Name          string
	ProjectType   string
	StartDate     string
	EndDate       string
	Installments  string
	ProjectHeads  string
	CarryForward  string
	OverrideType  sql.NullString
	OverrideIndex sql.NullInt64
	NegativeHeads string
	Version       int64
	CreatedAt     string
	UpdatedAt     string
}

type Expense struct {
	ID           string
	Reason       string
	Category     string
	AmountCents  int64
	PaidBy       string
	Settlement   string
	ReimbursedID sql.NullString
	PaidStatus   int64
	CreatedAt    string
	UpdatedAt    string
}

type InstituteExpense struct {
	ID                 string
	ProjectID          string
	ProjectHead        string
	YearOrInstallment  int64
	OverheadPercentage string
	Reason             string
	Category           string
	AmountCents        int64
	PaidBy             string
	Settlement         string
	PaidStatus         int64
	CreatedAt          string
	UpdatedAt          string
}

type Reimbursement struct {
	ID                string
	ProjectID         string
	ProjectHead       string
	YearOrInstallment int64
	TotalAmountCents  int64
	PaidStatus        int64
	Remarks           string
	CreatedAt         string
	UpdatedAt         string
}

type AccountEntry struct {
	ID                string
	AmountCents       int64
	AccountType       string
	Credited          int64
	TransferableCents int64
	Remarks           string
	CreatedAt         string
}

type HeadTotal struct {
	ProjectHead string
	TotalCents  int64
}
