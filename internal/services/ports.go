// Package services orchestrates fund and expense operations over a Store,
// publishing fund events after every successful write.
package services

import (
	"context"

	"github.com/google/uuid"

	"labfunds/internal/amqp"
	"labfunds/internal/core"
	"labfunds/internal/funds"
)

// Store is everything the services need from a data backend. Both the
// SQLite repository and the memory store satisfy it.
type Store interface {
	funds.ProjectStore
	funds.SpendingReader

	CreateProject(ctx context.Context, p *core.Project) error
	DeleteProject(ctx context.Context, id uuid.UUID) error

	CreateExpense(ctx context.Context, e *core.Expense) error
	GetExpense(ctx context.Context, id uuid.UUID) (*core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e *core.Expense) error
	ReimbursementExpenses(ctx context.Context, reimbursementID uuid.UUID) ([]core.Expense, error)

	CreateInstituteExpense(ctx context.Context, e *core.InstituteExpense) error
	ListInstituteExpenses(ctx context.Context, projectID uuid.UUID) ([]core.InstituteExpense, error)

	CreateReimbursement(ctx context.Context, r *core.Reimbursement) error
	GetReimbursement(ctx context.Context, id uuid.UUID) (*core.Reimbursement, error)
	ListReimbursements(ctx context.Context, projectID uuid.UUID) ([]core.Reimbursement, error)
	SetReimbursementsPaid(ctx context.Context, ids []uuid.UUID, paid bool, entry *core.AccountEntry) error

	AppendAccountEntry(ctx context.Context, e *core.AccountEntry) error
	ListAccountEntries(ctx context.Context) ([]core.AccountEntry, error)

	Ping(ctx context.Context) error
	Close() error
}

// EventPublisher sends fund events. *amqp.Client implements it.
type EventPublisher interface {
	PublishFundEvent(ctx context.Context, msg *amqp.FundEventMessage) error
}
