package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"labfunds/internal/core"
	"labfunds/internal/services"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if boolQuery(r, "balance") {
		balances, err := s.funds.Balances(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse(balances).Write(w)
		return
	}
	views, err := s.funds.ListProjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(views).Write(w)
}

type createProjectRequest struct {
	Name          string                          `json:"name"`
	Type          core.ProjectType                `json:"project_type"`
	StartDate     core.Date                       `json:"start_date"`
	EndDate       core.Date                       `json:"end_date"`
	Installments  []core.Installment              `json:"installments"`
	Heads         core.SeriesMap[decimal.Decimal] `json:"project_heads"`
	NegativeHeads []string                        `json:"negative_heads"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p := &core.Project{
		Name:          sanitizeInput(req.Name),
		Type:          req.Type,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Installments:  req.Installments,
		Heads:         req.Heads,
		NegativeHeads: req.NegativeHeads,
	}
	view, err := s.funds.CreateProject(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(view).Status(http.StatusCreated).Header("Location", "/api/projects/"+view.ID.String()).Write(w)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.funds.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(view).Write(w)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.funds.DeleteProject(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateHeadsRequest struct {
	Heads         core.SeriesMap[decimal.Decimal] `json:"project_heads"`
	NegativeHeads []string                        `json:"negative_heads"`
	Version       int64                           `json:"version"`
}

func (s *Server) handleUpdateHeads(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateHeadsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Version < 1 {
		writeError(w, r, core.Invalid(errors.New("version is required")))
		return
	}
	view, err := s.funds.UpdateHeads(r.Context(), id, services.HeadsUpdate{
		Heads:         req.Heads,
		NegativeHeads: req.NegativeHeads,
		Version:       req.Version,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(view).Write(w)
}

// handleTotalExpenses answers {head: amount} at the current period; the
// period index travels in a header.
func (s *Server) handleTotalExpenses(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	totals, idx, err := s.funds.TotalExpenses(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(totals).Header("X-Period-Index", strconv.Itoa(idx)).Write(w)
}

func (s *Server) handleProjectBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.funds.ProjectBalance(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(b).Write(w)
}

func (s *Server) handleCarryForward(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.funds.CarryForward(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(view).Write(w)
}

type overrideRequest struct {
	SelectedIndex *int `json:"selectedIndex"`
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req overrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.SelectedIndex == nil {
		writeError(w, r, core.Invalid(errors.New("selectedIndex is required")))
		return
	}
	view, err := s.funds.SetOverride(r.Context(), id, *req.SelectedIndex)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(view).Write(w)
}

func (s *Server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.funds.ClearOverride(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse(view).Write(w)
}
