package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"labfunds/internal/amqp"
	"labfunds/internal/core"
	"labfunds/internal/funds"
	"labfunds/internal/log"
	"labfunds/internal/period"
)

// ExpensePatch holds the fields of an expense update; nil means unchanged.
type ExpensePatch struct {
	Reason     *string
	Category   *string
	Amount     *decimal.Decimal
	PaidBy     *string
	Settlement *core.Settlement
	PaidStatus *bool
}

func (p ExpensePatch) onlyPaidStatus() bool {
	return p.Reason == nil && p.Category == nil && p.Amount == nil && p.PaidBy == nil && p.Settlement == nil
}

// ReimbursementRequest files expenses against a project head.
type ReimbursementRequest struct {
	ProjectID   uuid.UUID
	ProjectHead string
	ExpenseIDs  []uuid.UUID
	Remarks     string
}

// PaidResult reports a paid/unpaid batch.
type PaidResult struct {
	Reimbursements []core.Reimbursement `json:"reimbursements"`
	Entry          *core.AccountEntry   `json:"account_entry"`
}

// ExpenseService handles expenses, institute expenses, reimbursements and
// the account log.
type ExpenseService struct {
	store  Store
	funds  *FundService
	logger *log.Logger
}

func NewExpenseService(store Store, fundService *FundService) *ExpenseService {
	return &ExpenseService{
		store:  store,
		funds:  fundService,
		logger: fundService.logger.WithComponent(log.ComponentExpense),
	}
}

func (s *ExpenseService) CreateExpense(ctx context.Context, e *core.Expense) error {
	e.ReimbursedID = nil
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.store.CreateExpense(ctx, e); err != nil {
		return fmt.Errorf("save expense: %w", err)
	}
	return nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx)
}

// UpdateExpense applies patch. Once reimbursed, only the paid status may
// change.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id uuid.UUID, patch ExpensePatch) (*core.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Reimbursed() && !patch.onlyPaidStatus() {
		return nil, core.Invalid(core.ErrReimbursedFixed)
	}
	if patch.Reason != nil {
		e.Reason = *patch.Reason
	}
	if patch.Category != nil {
		e.Category = *patch.Category
	}
	if patch.Amount != nil {
		e.Amount = *patch.Amount
	}
	if patch.PaidBy != nil {
		e.PaidBy = *patch.PaidBy
	}
	if patch.Settlement != nil {
		e.Settlement = *patch.Settlement
	}
	if patch.PaidStatus != nil {
		e.PaidStatus = *patch.PaidStatus
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return nil, fmt.Errorf("save expense: %w", err)
	}
	return e, nil
}

// openPeriod loads the project and checks it has a current period and the
// head exists.
func (s *ExpenseService) openPeriod(ctx context.Context, projectID uuid.UUID, head string) (*core.Project, int, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	if !p.Heads.Has(head) {
		return nil, 0, core.Invalid(fmt.Errorf("%w: %q", core.ErrUnknownHead, head))
	}
	curr := period.CurrentIndex(p, s.funds.Today())
	if curr == period.Expired {
		return nil, 0, funds.ErrTimelineOver
	}
	return p, curr, nil
}

// FileInstituteExpense charges e to its project head in the current period.
func (s *ExpenseService) FileInstituteExpense(ctx context.Context, e *core.InstituteExpense) error {
	e.ReimbursedID = nil
	if err := e.Expense.Validate(); err != nil {
		return err
	}
	if e.OverheadPercentage.IsNegative() || e.OverheadPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return core.Invalid(fmt.Errorf("overhead percentage must be within [0, 100]"))
	}
	p, curr, err := s.openPeriod(ctx, e.ProjectID, e.ProjectHead)
	if err != nil {
		return err
	}
	if err := s.funds.checkHeadBudget(ctx, p, curr, e.ProjectHead, e.Amount); err != nil {
		return err
	}
	e.YearOrInstallment = curr
	if err := s.store.CreateInstituteExpense(ctx, e); err != nil {
		return fmt.Errorf("save institute expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Institute expense filed",
		log.FieldProjectID, p.ID,
		log.FieldHead, e.ProjectHead,
		log.FieldPeriod, curr,
		log.FieldAmount, core.FormatAmount(e.Amount))
	s.funds.changed(ctx, amqp.EventInstituteExpense, p.ID, curr)
	return nil
}

func (s *ExpenseService) ListInstituteExpenses(ctx context.Context, projectID uuid.UUID) ([]core.InstituteExpense, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListInstituteExpenses(ctx, projectID)
}

// FileReimbursement bundles unreimbursed expenses into one claim against
// a project head in the current period.
func (s *ExpenseService) FileReimbursement(ctx context.Context, req ReimbursementRequest) (*core.Reimbursement, error) {
	if len(req.ExpenseIDs) == 0 {
		return nil, core.Invalid(fmt.Errorf("reimbursement needs at least one expense"))
	}
	p, curr, err := s.openPeriod(ctx, req.ProjectID, req.ProjectHead)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(req.ExpenseIDs))
	total := decimal.Zero
	for _, id := range req.ExpenseIDs {
		if seen[id] {
			return nil, core.Invalid(fmt.Errorf("expense %s listed twice", id))
		}
		seen[id] = true
		e, err := s.store.GetExpense(ctx, id)
		if err != nil {
			return nil, err
		}
		if e.Reimbursed() {
			return nil, core.Invalid(fmt.Errorf("expense %s is already reimbursed", id))
		}
		total = total.Add(e.Amount)
	}
	if err := s.funds.checkHeadBudget(ctx, p, curr, req.ProjectHead, total); err != nil {
		return nil, err
	}

	rb := &core.Reimbursement{
		ProjectID:         p.ID,
		ProjectHead:       req.ProjectHead,
		YearOrInstallment: curr,
		ExpenseIDs:        req.ExpenseIDs,
		TotalAmount:       total,
		Remarks:           req.Remarks,
	}
	if err := s.store.CreateReimbursement(ctx, rb); err != nil {
		return nil, fmt.Errorf("save reimbursement: %w", err)
	}
	s.logger.InfoContext(ctx, "Reimbursement filed",
		log.FieldProjectID, p.ID,
		log.FieldHead, rb.ProjectHead,
		log.FieldPeriod, curr,
		log.FieldAmount, core.FormatAmount(total),
		"expenses", len(rb.ExpenseIDs))
	s.funds.changed(ctx, amqp.EventReimbursement, p.ID, curr)
	return rb, nil
}

func (s *ExpenseService) ListReimbursements(ctx context.Context, projectID uuid.UUID) ([]core.Reimbursement, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListReimbursements(ctx, projectID)
}

// SetReimbursementsPaid marks a batch paid or unpaid and records the money
// movement as one Current account entry. Transferable is the part of the
// batch that was fronted from Savings.
func (s *ExpenseService) SetReimbursementsPaid(ctx context.Context, ids []uuid.UUID, paid bool, remarks string) (*PaidResult, error) {
	if len(ids) == 0 {
		return nil, core.Invalid(fmt.Errorf("no reimbursements selected"))
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	batch := make([]core.Reimbursement, 0, len(ids))
	total, transferable := decimal.Zero, decimal.Zero
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		rb, err := s.store.GetReimbursement(ctx, id)
		if err != nil {
			return nil, err
		}
		if rb.PaidStatus == paid {
			return nil, core.Invalid(fmt.Errorf("reimbursement %s is already marked paid=%t", id, paid))
		}
		expenses, err := s.store.ReimbursementExpenses(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, e := range expenses {
			if e.Settlement == core.SettleSavings {
				transferable = transferable.Add(e.Amount)
			}
		}
		total = total.Add(rb.TotalAmount)
		batch = append(batch, *rb)
	}

	unique := make([]uuid.UUID, len(batch))
	for i, rb := range batch {
		unique[i] = rb.ID
	}
	var entry *core.AccountEntry
	if total.IsPositive() {
		entry = &core.AccountEntry{
			Amount:       total,
			Type:         core.AccountCurrent,
			Credited:     paid,
			Transferable: transferable,
			Remarks:      remarks,
		}
	}
	if err := s.store.SetReimbursementsPaid(ctx, unique, paid, entry); err != nil {
		return nil, fmt.Errorf("mark reimbursements: %w", err)
	}

	notified := make(map[uuid.UUID]bool)
	for i := range batch {
		batch[i].PaidStatus = paid
		rb := batch[i]
		if !notified[rb.ProjectID] {
			notified[rb.ProjectID] = true
			s.funds.changed(ctx, amqp.EventReimbursementPay, rb.ProjectID, rb.YearOrInstallment)
		}
	}
	s.logger.InfoContext(ctx, "Reimbursements marked",
		log.FieldOperation, log.OpMarkPaid,
		"count", len(batch),
		"paid", paid,
		log.FieldAmount, core.FormatAmount(total))
	return &PaidResult{Reimbursements: batch, Entry: entry}, nil
}

func (s *ExpenseService) AppendAccountEntry(ctx context.Context, e *core.AccountEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.store.AppendAccountEntry(ctx, e); err != nil {
		return fmt.Errorf("save account entry: %w", err)
	}
	return nil
}

func (s *ExpenseService) ListAccountEntries(ctx context.Context) ([]core.AccountEntry, error) {
	return s.store.ListAccountEntries(ctx)
}

func (s *ExpenseService) AccountBalances(ctx context.Context) (core.Balances, error) {
	entries, err := s.store.ListAccountEntries(ctx)
	if err != nil {
		return core.Balances{}, fmt.Errorf("list account entries: %w", err)
	}
	return core.ComputeBalances(entries), nil
}
