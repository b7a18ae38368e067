package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AccountCurrent AccountType = "Current"
	AccountSavings AccountType = "Savings"
	AccountPD      AccountType = "PD"
)

type (
	AccountType string

	// AccountEntry is one line of the append-only account log. Credited
	// entries add to the balance, debits subtract.
	AccountEntry struct {
		ID           uuid.UUID       `json:"id"`
		Amount       decimal.Decimal `json:"amount"`
		Type         AccountType     `json:"type"`
		Credited     bool            `json:"credited"`
		Transferable decimal.Decimal `json:"transferable"`
		Remarks      string          `json:"remarks"`
		CreatedAt    time.Time       `json:"created_at"`
	}

	Balances struct {
		Current      decimal.Decimal `json:"current"`
		Savings      decimal.Decimal `json:"savings"`
		PD           decimal.Decimal `json:"pd"`
		Transferable decimal.Decimal `json:"transferable"`
	}
)

func (t AccountType) Valid() bool {
	return t == AccountCurrent || t == AccountSavings || t == AccountPD
}

func (e *AccountEntry) Validate() error {
	if !e.Type.Valid() {
		return Invalid(fmt.Errorf("%w: %q", ErrInvalidAccount, e.Type))
	}
	if !e.Amount.IsPositive() {
		return Invalid(ErrInvalidAmount)
	}
	if err := errors.Join(checkCents("amount", e.Amount), checkCents("transferable", e.Transferable)); err != nil {
		return Invalid(err)
	}
	if e.Transferable.IsNegative() || e.Transferable.GreaterThan(e.Amount) {
		return Invalid(fmt.Errorf("transferable must be within [0, amount]"))
	}
	return nil
}

// ComputeBalances folds the entry log into per-account balances.
// Transferable tracks money owed back to Savings and follows the same sign
// as its entry.
func ComputeBalances(entries []AccountEntry) Balances {
	b := Balances{
		Current:      decimal.Zero,
		Savings:      decimal.Zero,
		PD:           decimal.Zero,
		Transferable: decimal.Zero,
	}
	for _, e := range entries {
		amount, transferable := e.Amount, e.Transferable
		if !e.Credited {
			amount, transferable = amount.Neg(), transferable.Neg()
		}
		switch e.Type {
		case AccountCurrent:
			b.Current = b.Current.Add(amount)
		case AccountSavings:
			b.Savings = b.Savings.Add(amount)
		case AccountPD:
			b.PD = b.PD.Add(amount)
		}
		b.Transferable = b.Transferable.Add(transferable)
	}
	return b
}
