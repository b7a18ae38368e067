package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"labfunds/internal/core"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	entries, err := s.expenses.ListAccountEntries(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(entries).Write(w)
}

type accountEntryRequest struct {
	Amount       decimal.Decimal  `json:"amount"`
	Type         core.AccountType `json:"type"`
	Credited     bool             `json:"credited"`
	Transferable decimal.Decimal  `json:"transferable"`
	Remarks      string           `json:"remarks"`
}

func (s *Server) handleAppendAccount(w http.ResponseWriter, r *http.Request) {
	var req accountEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e := core.AccountEntry{
		Amount:       req.Amount,
		Type:         req.Type,
		Credited:     req.Credited,
		Transferable: req.Transferable,
		Remarks:      sanitizeInput(req.Remarks),
	}
	if err := s.expenses.AppendAccountEntry(r.Context(), &e); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(e).Status(http.StatusCreated).Write(w)
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.expenses.AccountBalances(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(b).Write(w)
}
