package http

import (
	"errors"
	"net/http"
	"time"

	"tripledger/internal/core"
	"tripledger/internal/log"
	"tripledger/internal/services"
)

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func list[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady reports ready once both collections are loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	if !s.ledger.Loaded() {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, map[string]any{
		"status": status,
		"checks": map[string]any{
			"ledger":       status,
			"rate_limiter": map[string]int{"active_clients": s.limiter.activeClients()},
		},
	})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	c, err := ParseExpenseCriteria(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list(s.ledger.ListExpenses(c)))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	in, err := ParseExpenseInput(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	e, err := s.ledger.CreateExpense(r.Context(), in)
	if err != nil && !errors.Is(err, services.ErrNotPersisted) {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeCreated(w, r, "expense", e, err)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.ledger.Expense(r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.ledger.Facets())
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, list(s.ledger.ListTrips(ParseTripCriteria(r.URL.Query()))))
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	in, err := ParseTripInput(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	t, err := s.ledger.CreateTrip(r.Context(), in)
	if err != nil && !errors.Is(err, services.ErrNotPersisted) {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeCreated(w, r, "trip", t, err)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.Trip(r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

func (s *Server) handleTripUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, list(s.ledger.TripUsage()))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	c, err := ParseExpenseCriteria(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.ledger.Summary(c))
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, list(s.ledger.MonthlyTotals()))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	c, err := ParseExpenseCriteria(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list(s.ledger.CategoryTotals(c)))
}

func (s *Server) handleTripBreakdowns(w http.ResponseWriter, r *http.Request) {
	c, err := ParseExpenseCriteria(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list(s.ledger.TripBreakdowns(c)))
}

// writeCreated answers 201 with the record. A record kept in memory but not
// written to the snapshot carries a Warning header.
func (s *Server) writeCreated(w http.ResponseWriter, r *http.Request, kind string, record interface{ RecordID() string }, persistErr error) {
	if persistErr != nil {
		s.access.LogError(r.Context(), "Record created but not persisted", persistErr,
			log.ComponentLedger, log.OpPersist, log.NewFields().WithRecord(kind, record.RecordID()))
		w.Header().Set("Warning", `199 tripledger "record not persisted"`)
	}
	writeJSON(w, r, http.StatusCreated, record)
}

// writeServiceError maps domain errors to status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, errBadRequest):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		op := log.OpRead
		if r.Method == http.MethodPost {
			op = log.OpCreate
		}
		s.access.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
