// Package worker mirrors stored records to the sheets exporter and
// archives diagnostic payloads. It consumes the AMQP queues and runs a
// periodic scan as a backup for lost messages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"spendlog/internal/amqp"
	"spendlog/internal/core"
	"spendlog/internal/storage"
)

// RecordExporter mirrors one record to an external destination.
type RecordExporter interface {
	Append(ctx context.Context, rec core.Record) (string, error)
}

type ExportWorker struct {
	storage   *storage.SQLiteRepository
	exporter  RecordExporter
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, exporter RecordExporter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		storage:   storage,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// Run consumes both queues and runs the periodic pending scan until the
// context is cancelled.
func (w *ExportWorker) Run(ctx context.Context, client *amqp.Client, scanInterval time.Duration) error {
	if scanInterval <= 0 {
		scanInterval = time.Minute
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeExports(ctx, func(msg *amqp.RecordExportMessage) error {
			return w.HandleExportMessage(ctx, msg)
		})
	})
	g.Go(func() error {
		return client.ConsumeDiagnostics(ctx, func(msg *amqp.DiagnosticMessage) error {
			return w.HandleDiagnosticMessage(ctx, msg)
		})
	})
	g.Go(func() error {
		ticker := time.NewTicker(scanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ProcessPendingRecords(ctx); err != nil {
					slog.ErrorContext(ctx, "Pending scan failed", "error", err)
				}
			}
		}
	})
	return g.Wait()
}

// HandleExportMessage processes a single export message from AMQP.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.RecordExportMessage) error {
	slog.InfoContext(ctx, "Processing export message", "record_id", msg.RecordID)

	rec, err := w.storage.Get(ctx, msg.RecordID)
	if errors.Is(err, core.ErrRecordNotFound) {
		// Deleted before the worker got to it; nothing to mirror.
		slog.WarnContext(ctx, "Record gone before export, dropping message",
			"record_id", msg.RecordID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}

	return w.exportRecord(ctx, rec)
}

// HandleDiagnosticMessage archives a captured raw payload.
func (w *ExportWorker) HandleDiagnosticMessage(ctx context.Context, msg *amqp.DiagnosticMessage) error {
	slog.WarnContext(ctx, "Parse diagnostic received",
		"prompt", msg.Prompt,
		"body", msg.Body,
		"captured_at", msg.Timestamp)

	if err := w.storage.SaveDiagnostic(ctx, msg.Prompt, msg.Body); err != nil {
		return fmt.Errorf("archive diagnostic: %w", err)
	}
	return nil
}

// ProcessPendingRecords exports records still marked pending. This is a
// backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPendingRecords(ctx context.Context) error {
	pending, err := w.storage.ListPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending records", "count", len(pending))
	for _, rec := range pending {
		if err := w.exportRecord(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to export record", "record_id", rec.ID, "error", err)
		}
	}
	return nil
}

// StartupCheck drains a larger pending batch at boot to recover from
// missed messages or worker downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.ListPendingExport(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending records for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending records found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending records on startup, processing...",
		"count", len(pending))

	exported, failed := 0, 0
	for _, rec := range pending {
		if err := w.exportRecord(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to export record during startup",
				"record_id", rec.ID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", exported,
		"errors", failed)
	return nil
}

func (w *ExportWorker) exportRecord(ctx context.Context, rec core.Record) error {
	if w.exporter == nil {
		slog.WarnContext(ctx, "No exporter configured, leaving record pending",
			"record_id", rec.ID)
		return nil
	}

	ref, err := w.exporter.Append(ctx, rec)
	if err != nil {
		if markErr := w.storage.MarkExportError(ctx, rec.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				"record_id", rec.ID, "error", markErr)
		}
		return fmt.Errorf("append to exporter: %w", err)
	}

	if err := w.storage.MarkExported(ctx, rec.ID); err != nil {
		// The export itself worked; only the bookkeeping failed.
		slog.ErrorContext(ctx, "Failed to mark as exported",
			"record_id", rec.ID, "error", err)
	}

	slog.InfoContext(ctx, "Record exported",
		"record_id", rec.ID,
		"sheets_ref", ref,
		"title", rec.Title,
		"amount", rec.Amount)
	return nil
}
