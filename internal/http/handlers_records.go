package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/wire"
)

// recordJSON is the API shape of a record. Timestamps travel in the
// exchange layout; amounts are whole currency units.
type recordJSON struct {
	ID        string `json:"id"`
	Icon      string `json:"icon"`
	Title     string `json:"title"`
	Amount    int64  `json:"amount"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	Note      string `json:"note,omitempty"`
}

func toRecordJSON(rec core.Record) recordJSON {
	return recordJSON{
		ID:        rec.ID,
		Icon:      rec.Icon,
		Title:     rec.Title,
		Amount:    rec.Amount,
		Category:  rec.Category,
		Timestamp: wire.FormatTimestamp(rec.Timestamp),
		Note:      rec.Note,
	}
}

// toRecord validates and converts the API shape. A blank timestamp
// defaults to now in the civil zone, truncated to the minute. Manual
// entries must carry a title; the store itself accepts empty ones so
// that parsed batches are never rejected mid-insert.
func (j recordJSON) toRecord() (core.Record, error) {
	rec := core.Record{
		ID:       j.ID,
		Icon:     j.Icon,
		Title:    sanitizeInput(j.Title),
		Amount:   j.Amount,
		Category: sanitizeInput(j.Category),
		Note:     sanitizeInput(j.Note),
	}
	if rec.Title == "" {
		return core.Record{}, core.ErrEmptyTitle
	}
	if j.Timestamp == "" {
		rec.Timestamp = time.Now().In(core.Zone()).Truncate(time.Minute)
	} else {
		ts, err := wire.ParseTimestamp(j.Timestamp)
		if err != nil {
			return core.Record{}, errors.New("timestamp must match " + wire.TimestampLayout)
		}
		rec.Timestamp = ts
	}
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	out := make([]recordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordJSON(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var body recordJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	body.ID = "" // ids are assigned by the store
	rec, err := body.toRecord()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rec.ID = core.NewID()

	if _, err := s.store.Append(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save record")
		return
	}
	s.invalidateSummaries()
	writeJSON(w, http.StatusCreated, toRecordJSON(rec))
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing record id")
		return
	}

	var body recordJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	body.ID = id
	rec, err := body.toRecord()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.Update(r.Context(), rec); err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update record")
		return
	}
	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, toRecordJSON(rec))
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing record id")
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}
	s.invalidateSummaries()
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteBatch removes the given set of records or none of them.
func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids must not be empty")
		return
	}

	if err := s.store.DeleteBatch(r.Context(), body.IDs); err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "one or more records not found, nothing deleted")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete records")
		return
	}
	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(body.IDs)})
}
