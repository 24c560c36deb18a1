package http

import (
	"net/http"

	"saldo/internal/core"
)

func (s *Server) registerAlertRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/alerts", s.handleListAlerts)
	mux.HandleFunc("DELETE /api/alerts", s.handleClearAlerts)
	mux.HandleFunc("POST /api/alerts/refresh", s.handleRefreshAlerts)
	mux.HandleFunc("POST /api/alerts/read-all", s.handleReadAllAlerts)
	mux.HandleFunc("POST /api/alerts/{id}/read", s.handleReadAlert)
	mux.HandleFunc("DELETE /api/alerts/{id}", s.handleDeleteAlert)
}

type alertsResponse struct {
	Alerts []core.Alert `json:"alerts"`
	Unread int          `json:"unread"`
}

func (s *Server) handleListAlerts(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Data(alertsResponse{
		Alerts: orEmpty(s.tracker.Alerts()),
		Unread: s.tracker.UnreadAlerts(),
	}).Write(w)
}

func (s *Server) handleRefreshAlerts(w http.ResponseWriter, r *http.Request) {
	added := s.tracker.RefreshAlerts(r.Context())
	NewJSONResponse().Data(map[string][]core.Alert{"added": orEmpty(added)}).Write(w)
}

func (s *Server) handleReadAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.MarkAlertRead(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleReadAllAlerts(w http.ResponseWriter, r *http.Request) {
	n := s.tracker.MarkAllAlertsRead(r.Context())
	NewJSONResponse().Data(map[string]int{"count": n}).Write(w)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.RemoveAlert(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	n := s.tracker.ClearAlerts(r.Context())
	NewJSONResponse().Data(map[string]int{"count": n}).Write(w)
}
