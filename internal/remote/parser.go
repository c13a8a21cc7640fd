// Package remote calls the external language-understanding endpoint and
// classifies every way the exchange can go wrong.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/log"
	"spendlog/internal/wire"
)

// DefaultTimeout bounds the primary parse request.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response body is read. Model output for
// a handful of records is small; anything larger is garbage.
const maxBodyBytes = 1 << 20

// DiagnosticsPublisher receives raw payloads captured from failed parses.
// Implementations must tolerate being called from detached goroutines.
type DiagnosticsPublisher interface {
	PublishDiagnostic(ctx context.Context, prompt, body string) error
}

// Config configures a Parser.
type Config struct {
	// Endpoint is the fixed URL receiving {"prompt": ...} POSTs.
	Endpoint string
	// Timeout bounds the primary request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Codec transcodes wire objects. Defaults to a lenient codec.
	Codec *wire.Codec
	// Diagnostics is optional; nil disables the diagnostic channel
	// (failures are still logged).
	Diagnostics DiagnosticsPublisher
	Logger      *log.Logger
}

// Parser turns a free-form prompt into structured records via one HTTP
// exchange with the external service.
type Parser struct {
	endpoint string
	client   *http.Client
	codec    *wire.Codec
	diag     DiagnosticsPublisher
	logger   *log.Logger
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type envelope struct {
	Data []json.RawMessage `json:"data"`
	Raw  *string           `json:"raw"`
}

func New(cfg Config) *Parser {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	codec := cfg.Codec
	if codec == nil {
		codec = &wire.Codec{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentRemote)
	}
	return &Parser{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		codec:    codec,
		diag:     cfg.Diagnostics,
		logger:   logger,
	}
}

// Parse issues the primary request and transcodes the response. The
// returned records preserve the service's order. Exactly one network call
// is made for the logical operation; failures trigger a best-effort
// diagnostic capture that never influences the returned error.
func (p *Parser) Parse(ctx context.Context, prompt string) ([]core.Record, error) {
	payload, err := json.Marshal(promptRequest{Prompt: prompt})
	if err != nil {
		return nil, &TransportError{Detail: "encode request", Err: err}
	}

	resp, err := p.post(ctx, payload)
	if err != nil {
		p.captureDiagnostic(ctx, prompt, payload)
		return nil, &TransportError{Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		p.captureDiagnostic(ctx, prompt, payload)
		return nil, &TransportError{Detail: "read response: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.captureDiagnostic(ctx, prompt, payload)
		return nil, &TransportError{Status: resp.StatusCode, Detail: truncate(string(body), 200)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		p.captureDiagnostic(ctx, prompt, payload)
		return nil, &EnvelopeError{Detail: truncate(string(body), 200)}
	}

	if len(env.Data) == 0 {
		p.captureDiagnostic(ctx, prompt, payload)
		raw := ""
		if env.Raw != nil {
			raw = *env.Raw
		}
		return nil, &EmptyResultError{Raw: raw}
	}

	records := make([]core.Record, 0, len(env.Data))
	for i, obj := range env.Data {
		rec, err := p.codec.Decode(obj)
		if err != nil {
			p.captureDiagnostic(ctx, prompt, payload)
			var de *wire.DecodeError
			if !errors.As(err, &de) {
				de = &wire.DecodeError{Kind: wire.KindUnknown, Detail: err.Error()}
			}
			return nil, &DecodeFailure{Index: i, Err: de}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *Parser) post(ctx context.Context, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.client.Do(req)
}

// captureDiagnostic re-issues the request body once, detached from the
// caller, and forwards the raw response to the diagnostic channel. This is
// not a retry of the logical operation; the result is discarded and every
// failure in here is swallowed.
func (p *Parser) captureDiagnostic(ctx context.Context, prompt string, payload []byte) {
	detached := context.WithoutCancel(ctx)
	go func() {
		dctx, cancel := context.WithTimeout(detached, DefaultTimeout)
		defer cancel()

		resp, err := p.post(dctx, payload)
		if err != nil {
			p.logger.Debug("diagnostic capture failed", log.FieldError, err.Error())
			return
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			p.logger.Debug("diagnostic capture read failed", log.FieldError, err.Error())
			return
		}

		p.logger.Warn("parse failed, raw payload captured",
			log.FieldPrompt, truncate(prompt, 200),
			log.FieldRawBody, truncate(string(body), 500),
			log.FieldStatusCode, resp.StatusCode,
		)
		if p.diag != nil {
			if err := p.diag.PublishDiagnostic(dctx, prompt, string(body)); err != nil {
				p.logger.Debug("diagnostic publish failed", log.FieldError, err.Error())
			}
		}
	}()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
