package http

import (
	"errors"
	"mime"
	"net/http"

	"tripledger/internal/export"
	"tripledger/internal/log"
)

// handleExportExpenses downloads the filtered expenses as CSV.
func (s *Server) handleExportExpenses(w http.ResponseWriter, r *http.Request) {
	c, err := ParseExpenseCriteria(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	rows := export.ExpenseRows(s.ledger.ListExpenses(c))
	data, err := export.Encoder{Columns: export.ExpenseColumns}.Encode(rows)
	s.writeCSV(w, r, export.ExpensesFilename(s.ledger.Now()), data, err)
}

// handleExportReport downloads the summary of the filtered expenses as a
// single CSV row labelled with the period.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	c, err := ParseExpenseCriteria(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	rows := export.ReportRows(s.ledger.Summary(c), export.Period(c))
	data, err := export.Encoder{Columns: export.ReportColumns}.Encode(rows)
	s.writeCSV(w, r, export.ReportFilename(s.ledger.Now()), data, err)
}

func (s *Server) writeCSV(w http.ResponseWriter, r *http.Request, filename string, data []byte, err error) {
	logger := log.FromContext(r.Context())
	switch {
	case errors.Is(err, export.ErrNoRows), errors.Is(err, export.ErrNoColumns):
		logger.InfoContext(r.Context(), "Nothing to export", log.FieldOperation, log.OpExport, log.FieldError, err)
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.ErrorContext(r.Context(), "Failed to write export", log.FieldError, err)
		return
	}
	logger.InfoContext(r.Context(), "Export downloaded",
		log.FieldOperation, log.OpExport,
		"filename", filename,
		"bytes", len(data))
}
