package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"labfunds/internal/core"
	"labfunds/internal/services"
)

type expenseRequest struct {
	Reason     string          `json:"reason"`
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	PaidBy     string          `json:"paid_by"`
	Settlement core.Settlement `json:"settlement"`
}

func (req expenseRequest) expense() core.Expense {
	return core.Expense{
		Reason:     sanitizeInput(req.Reason),
		Category:   sanitizeInput(req.Category),
		Amount:     req.Amount,
		PaidBy:     sanitizeInput(req.PaidBy),
		Settlement: req.Settlement,
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.expenses.ListExpenses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(list).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e := req.expense()
	if err := s.expenses.CreateExpense(r.Context(), &e); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(e).Status(http.StatusCreated).Write(w)
}

type expensePatchRequest struct {
	Reason     *string          `json:"reason"`
	Category   *string          `json:"category"`
	Amount     *decimal.Decimal `json:"amount"`
	PaidBy     *string          `json:"paid_by"`
	Settlement *core.Settlement `json:"settlement"`
	PaidStatus *bool            `json:"paid_status"`
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req expensePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.expenses.UpdateExpense(r.Context(), id, services.ExpensePatch{
		Reason:     sanitizePtr(req.Reason),
		Category:   sanitizePtr(req.Category),
		Amount:     req.Amount,
		PaidBy:     sanitizePtr(req.PaidBy),
		Settlement: req.Settlement,
		PaidStatus: req.PaidStatus,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(e).Write(w)
}

type instituteExpenseRequest struct {
	expenseRequest
	ProjectID          uuid.UUID       `json:"project_id"`
	ProjectHead        string          `json:"project_head"`
	OverheadPercentage decimal.Decimal `json:"overhead_percentage"`
}

func (s *Server) handleFileInstituteExpense(w http.ResponseWriter, r *http.Request) {
	var req instituteExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e := core.InstituteExpense{
		Expense:            req.expense(),
		ProjectID:          req.ProjectID,
		ProjectHead:        sanitizeInput(req.ProjectHead),
		OverheadPercentage: req.OverheadPercentage,
	}
	if err := s.expenses.FileInstituteExpense(r.Context(), &e); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(e).Status(http.StatusCreated).Write(w)
}

func (s *Server) handleListInstituteExpenses(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.expenses.ListInstituteExpenses(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(list).Write(w)
}

type reimbursementRequest struct {
	ProjectID   uuid.UUID   `json:"project_id"`
	ProjectHead string      `json:"project_head"`
	ExpenseIDs  []uuid.UUID `json:"expense_ids"`
	Remarks     string      `json:"remarks"`
}

func (s *Server) handleFileReimbursement(w http.ResponseWriter, r *http.Request) {
	var req reimbursementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rb, err := s.expenses.FileReimbursement(r.Context(), services.ReimbursementRequest{
		ProjectID:   req.ProjectID,
		ProjectHead: sanitizeInput(req.ProjectHead),
		ExpenseIDs:  req.ExpenseIDs,
		Remarks:     sanitizeInput(req.Remarks),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(rb).Status(http.StatusCreated).Write(w)
}

func (s *Server) handleListReimbursements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.expenses.ListReimbursements(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(list).Write(w)
}

type markPaidRequest struct {
	IDs     []uuid.UUID `json:"ids"`
	Paid    bool        `json:"paid"`
	Remarks string      `json:"remarks"`
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var req markPaidRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.expenses.SetReimbursementsPaid(r.Context(), req.IDs, req.Paid, sanitizeInput(req.Remarks))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(res).Write(w)
}
