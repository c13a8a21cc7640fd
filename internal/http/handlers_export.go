package http

import (
	"io"
	"net/http"
	"time"

	"spendlog/internal/export"
)

// maxImportBytes bounds the CSV import body.
const maxImportBytes = 4 << 20

// handleExport streams the full record list in the requested format.
// Format defaults to text.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	stamp := time.Now().Format("20060102")
	switch r.URL.Query().Get("format") {
	case "", "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="records-`+stamp+`.txt"`)
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, export.Text(records))
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="records-`+stamp+`.csv"`)
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, export.CSV(records))
	default:
		writeError(w, http.StatusBadRequest, "format must be 'text' or 'csv'")
	}
}

// handleImport parses a CSV body and inserts the records in file order.
// A malformed file inserts nothing.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	records, err := export.ParseCSV(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusBadRequest, "no records in file")
		return
	}

	inserted := 0
	for _, rec := range records {
		if _, err := s.store.Append(r.Context(), rec); err != nil {
			s.invalidateSummaries()
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":    "failed to save record",
				"imported": inserted,
			})
			return
		}
		inserted++
	}
	s.invalidateSummaries()
	writeJSON(w, http.StatusCreated, map[string]int{"imported": inserted})
}
