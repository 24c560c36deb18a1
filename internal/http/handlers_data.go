package http

import (
	"fmt"
	"net/http"
)

func (s *Server) registerDataRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/reset", s.handleReset)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.tracker.Export()
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := fmt.Sprintf("saldo-%s.json", s.clock.Now().Format("2006-01-02"))
	NewJSONResponse().
		Header("Content-Disposition", `attachment; filename="`+name+`"`).
		Raw(data).
		Write(w)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r, maxImportBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tracker.Import(r.Context(), data); err != nil {
		writeError(w, r, err)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.tracker.ResetAll(r.Context())
	s.summaryCache.Purge()
	NoContent().Write(w)
}
