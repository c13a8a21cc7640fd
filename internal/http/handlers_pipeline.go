package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"spendlog/internal/services"
)

// promptAckWait is how long the handler waits for a fast outcome before
// answering 202 and letting the submission finish in the background.
const promptAckWait = 150 * time.Millisecond

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// handlePromptSubmit feeds one prompt through the pipeline. Rejections
// (empty prompt, a submission already in flight) surface immediately;
// otherwise the client gets 202 and polls GET /api/pipeline.
func (s *Server) handlePromptSubmit(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt parsing not configured")
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// The submission must survive this request's lifetime.
	ctx := context.WithoutCancel(r.Context())
	errCh := make(chan error, 1)
	go func() {
		err := s.pipeline.Submit(ctx, req.Prompt)
		if err == nil {
			s.invalidateSummaries()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, s.pipeline.Snapshot())
		case errors.Is(err, services.ErrEmptyPrompt):
			writeError(w, http.StatusBadRequest, "prompt must not be empty")
		case errors.Is(err, services.ErrBusy):
			writeError(w, http.StatusConflict, "a submission is already in flight")
		case errors.Is(err, services.ErrPipelineClosed):
			writeError(w, http.StatusServiceUnavailable, "pipeline is shut down")
		default:
			// Classified failure; the user-facing text is in the snapshot.
			writeJSON(w, http.StatusUnprocessableEntity, s.pipeline.Snapshot())
		}
	case <-time.After(promptAckWait):
		writeJSON(w, http.StatusAccepted, s.pipeline.Snapshot())
	}
}

// handlePipelineStatus returns the current submission snapshot.
func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt parsing not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.Snapshot())
}
