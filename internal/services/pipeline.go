package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"spendlog/internal/core"
	"spendlog/internal/log"
	"spendlog/internal/remote"
	"spendlog/internal/store"
	"spendlog/internal/wire"
)

// PipelineState is the externally observable submission state.
type PipelineState string

const (
	StateIdle       PipelineState = "idle"
	StateSubmitting PipelineState = "submitting"
)

var (
	// ErrEmptyPrompt rejects blank submissions before any state change.
	ErrEmptyPrompt = errors.New("empty prompt")
	// ErrBusy rejects a submission while another is in flight.
	ErrBusy = errors.New("submission already in flight")
	// ErrPipelineClosed rejects submissions after teardown.
	ErrPipelineClosed = errors.New("pipeline closed")
)

// FormatErrorMessage is shown when the exchange worked but nothing could
// be extracted from the prompt.
const FormatErrorMessage = "format error, please check wording or retry"

// PromptParser turns a prompt into an ordered record batch.
type PromptParser interface {
	Parse(ctx context.Context, prompt string) ([]core.Record, error)
}

// Snapshot is a point-in-time view of the pipeline.
type Snapshot struct {
	State PipelineState `json:"state"`
	// Message is the user-facing failure text of the last submission,
	// empty when it succeeded. Cleared by the next submission.
	Message string `json:"message,omitempty"`
	// LastCount is how many records the last successful submission
	// admitted.
	LastCount int `json:"last_count"`
}

// Pipeline serializes prompt submissions: at most one is in flight, and a
// failed parse never inserts a partial batch.
type Pipeline struct {
	parser PromptParser
	writer store.RecordWriter
	logger *log.Logger

	mu        sync.Mutex
	state     PipelineState
	message   string
	lastCount int
	closed    bool
	observers []func(Snapshot)

	stopCh chan struct{}
}

func NewPipeline(parser PromptParser, writer store.RecordWriter, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentPipeline)
	}
	return &Pipeline{
		parser: parser,
		writer: writer,
		logger: logger,
		state:  StateIdle,
		stopCh: make(chan struct{}),
	}
}

// OnChange registers an observer invoked after every state transition.
// Observers run outside the pipeline lock and must not call back into it.
func (p *Pipeline) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Snapshot returns the current state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Submit runs one prompt through parse-and-insert. Records are inserted in
// the order the parser returned them. The returned error is the classified
// cause; the user-facing message is available via Snapshot.
func (p *Pipeline) Submit(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPipelineClosed
	}
	if p.state == StateSubmitting {
		p.mu.Unlock()
		return ErrBusy
	}
	p.state = StateSubmitting
	p.message = ""
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snap)

	// The in-flight call dies with the pipeline.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	records, err := p.parser.Parse(ctx, prompt)
	if err != nil {
		p.logger.Warn("submission failed",
			log.FieldPrompt, prompt,
			log.FieldError, err.Error(),
		)
		return p.settle(0, messageFor(err), err)
	}

	// Either the whole batch is admitted or nothing is: validate every
	// record before the first insert so a bad element cannot leave its
	// siblings behind in the store.
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			p.logger.Warn("submission rejected",
				log.FieldRecordID, rec.ID,
				log.FieldError, err.Error(),
			)
			return p.settle(0, "data error: "+err.Error(), err)
		}
	}

	inserted := 0
	for _, rec := range records {
		select {
		case <-p.stopCh:
			// Discard the result; the store must not change after
			// teardown.
			return p.settle(inserted, "", ErrPipelineClosed)
		default:
		}
		if _, err := p.writer.Append(ctx, rec); err != nil {
			p.logger.Error("insert failed",
				log.FieldRecordID, rec.ID,
				log.FieldError, err.Error(),
			)
			return p.settle(inserted, "storage error: "+err.Error(), err)
		}
		inserted++
	}

	p.logger.Info("submission admitted",
		log.FieldRecordCount, inserted,
	)
	return p.settle(inserted, "", nil)
}

// Close tears the pipeline down. An outstanding submission is cancelled
// and its result discarded.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.stopCh)
}

func (p *Pipeline) settle(count int, message string, err error) error {
	p.mu.Lock()
	p.state = StateIdle
	p.message = message
	if err == nil {
		p.lastCount = count
	}
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snap)
	return err
}

func (p *Pipeline) snapshotLocked() Snapshot {
	return Snapshot{State: p.state, Message: p.message, LastCount: p.lastCount}
}

func (p *Pipeline) notify(snap Snapshot) {
	p.mu.Lock()
	observers := make([]func(Snapshot), len(p.observers))
	copy(observers, p.observers)
	p.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

// messageFor is the sole translation from classified errors to the text a
// user sees.
func messageFor(err error) string {
	var df *remote.DecodeFailure
	if errors.As(err, &df) {
		return decodeMessage(df.Err)
	}
	var de *wire.DecodeError
	if errors.As(err, &de) {
		return decodeMessage(de)
	}
	var empty *remote.EmptyResultError
	if errors.As(err, &empty) {
		return FormatErrorMessage
	}
	var ee *remote.EnvelopeError
	if errors.As(err, &ee) {
		return "network error: unexpected response"
	}
	var te *remote.TransportError
	if errors.As(err, &te) {
		return "network error: " + te.Detail
	}
	return "unexpected error, please retry"
}

func decodeMessage(de *wire.DecodeError) string {
	switch de.Kind {
	case wire.KindMissingField:
		return "missing field: " + de.Field
	case wire.KindTypeMismatch:
		return "type error: " + de.Field
	case wire.KindValueMissing:
		return "missing value: " + de.Field
	case wire.KindCorrupted:
		return "data error: " + de.Detail
	default:
		return "unexpected error, please retry"
	}
}
