package http

import (
	"net/http"

	"github.com/shopspring/decimal"
)

func (s *Server) registerGoalRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("GET /api/goals/{id}", s.handleGetGoal)
	mux.HandleFunc("PATCH /api/goals/{id}", s.handleUpdateGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("POST /api/goals/{id}/deposits", s.handleDeposit)
	mux.HandleFunc("GET /api/goals/{id}/progress", s.handleGoalProgress)
}

func (s *Server) handleListGoals(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Data(orEmpty(s.tracker.Goals())).Write(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.tracker.Goal(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(g).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.tracker.AddGoal(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(g).Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.tracker.EditGoal(r.Context(), r.PathValue("id"), req.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(g).Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.RemoveGoal(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.tracker.DepositToGoal(r.Context(), r.PathValue("id"), req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(g).Write(w)
}

type progressResponse struct {
	ID       string          `json:"id"`
	Progress decimal.Decimal `json:"progress"`
	Reached  bool            `json:"reached"`
}

// handleGoalProgress answers 404 for unknown ids even though the tracker
// reports them as zero progress.
func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g, err := s.tracker.Goal(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(progressResponse{
		ID:       id,
		Progress: s.tracker.GoalProgress(id),
		Reached:  g.Reached(),
	}).Write(w)
}
