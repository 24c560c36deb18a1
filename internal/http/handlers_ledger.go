package http

import (
	"net/http"

	"saldo/internal/core"
	"saldo/internal/log"
)

func (s *Server) registerLedgerRoutes(mux *http.ServeMux) {
	for _, kind := range []core.TransactionKind{core.Income, core.Expense} {
		base := "/api/" + string(kind) + "s"
		mux.HandleFunc("GET "+base, s.handleListTransactions(kind))
		mux.HandleFunc("POST "+base, s.handleCreateTransaction(kind))
		mux.HandleFunc("PATCH "+base+"/{id}", s.handleUpdateTransaction(kind))
		mux.HandleFunc("DELETE "+base+"/{id}", s.handleDeleteTransaction(kind))
	}

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/evolution", s.handleEvolution)
}

func (s *Server) handleListTransactions(kind core.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txs, err := s.tracker.Transactions(kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse().Data(orEmpty(txs)).Write(w)
	}
}

func (s *Server) handleCreateTransaction(kind core.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transactionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		tx, err := s.tracker.AddTransaction(r.Context(), kind, req.input())
		if err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse().Status(http.StatusCreated).Data(tx).Write(w)
	}
}

func (s *Server) handleUpdateTransaction(kind core.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transactionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		tx, err := s.tracker.EditTransaction(r.Context(), kind, r.PathValue("id"), req.patch())
		if err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse().Data(tx).Write(w)
	}
}

func (s *Server) handleDeleteTransaction(kind core.TransactionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.tracker.RemoveTransaction(r.Context(), kind, r.PathValue("id")); err != nil {
			writeError(w, r, err)
			return
		}
		NoContent().Write(w)
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Data(orEmpty(s.tracker.Categories())).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p := req.patch()
	var name, color string
	if p.Name != nil {
		name = *p.Name
	}
	if p.Color != nil {
		color = *p.Color
	}
	c, err := s.tracker.AddCategory(r.Context(), name, color)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(c).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.tracker.EditCategory(r.Context(), r.PathValue("id"), req.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(c).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	n, err := s.tracker.RemoveCategory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(map[string]int{"uncategorized": n}).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriodParam(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := s.summaryKey(p)
	if sum, ok := s.summaryCache.Get(key); ok {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Summary cache hit", "period", p)
		NewJSONResponse().Data(sum).Write(w)
		return
	}
	sum := s.tracker.Summary(p)
	s.summaryCache.Set(key, sum)
	NewJSONResponse().Data(sum).Write(w)
}

type evolutionResponse struct {
	Year   int                `json:"year"`
	Months []core.MonthTotals `json:"months"`
}

func (s *Server) handleEvolution(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYearParam(r.URL.Query(), s.clock.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(evolutionResponse{Year: year, Months: s.tracker.Evolution(year)}).Write(w)
}
