package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"spendlog/internal/storage"
)

// diagnosticsDefaultLimit bounds the operator endpoint when no limit is
// asked for; diagnosticsMaxLimit caps what can be asked.
const (
	diagnosticsDefaultLimit = 20
	diagnosticsMaxLimit     = 200
)

// diagnosticsReader is implemented by backends that archive raw parse
// payloads. The in-memory backend does not.
type diagnosticsReader interface {
	RecentDiagnostics(ctx context.Context, limit int) ([]storage.DiagnosticRow, error)
}

type diagnosticJSON struct {
	ID        int64  `json:"id"`
	Prompt    string `json:"prompt"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// handleDiagnostics lists the newest archived payloads from failed
// parses so an operator can inspect what the remote endpoint returned.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	reader, ok := s.store.(diagnosticsReader)
	if !ok {
		writeError(w, http.StatusNotFound, "diagnostics not available for this backend")
		return
	}

	limit := diagnosticsDefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > diagnosticsMaxLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(diagnosticsMaxLimit))
			return
		}
		limit = n
	}

	rows, err := reader.RecentDiagnostics(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list diagnostics")
		return
	}

	out := make([]diagnosticJSON, 0, len(rows))
	for _, row := range rows {
		out = append(out, diagnosticJSON{
			ID:        row.ID,
			Prompt:    row.Prompt,
			Body:      row.Body,
			CreatedAt: row.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"diagnostics": out})
}
