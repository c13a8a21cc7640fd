package services

import (
	"context"
	"fmt"
	"log/slog"

	"spendlog/internal/core"
	"spendlog/internal/store"
)

// ExportPublisher notifies the background exporter about new or changed
// records. Implementations must be safe for concurrent use; nil disables
// export notifications.
type ExportPublisher interface {
	PublishRecordExport(ctx context.Context, recordID string) error
}

// RecordService orchestrates record mutations across the store and the
// export channel. Store writes come first; a failed publish never fails
// the request.
type RecordService struct {
	store     store.RecordStore
	publisher ExportPublisher
}

func NewRecordService(st store.RecordStore, publisher ExportPublisher) *RecordService {
	return &RecordService{store: st, publisher: publisher}
}

// Create saves a record and queues it for export.
func (s *RecordService) Create(ctx context.Context, rec core.Record) (string, error) {
	if rec.ID == "" {
		rec.ID = core.NewID()
	}
	ref, err := s.store.Append(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("save record: %w", err)
	}
	s.publishExport(ctx, rec.ID)
	return ref, nil
}

// Update replaces a record's mutable fields and re-queues it for export.
func (s *RecordService) Update(ctx context.Context, rec core.Record) error {
	if err := s.store.Update(ctx, rec); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	s.publishExport(ctx, rec.ID)
	return nil
}

func (s *RecordService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// DeleteBatch removes exactly the selected set or nothing.
func (s *RecordService) DeleteBatch(ctx context.Context, ids []string) error {
	if err := s.store.DeleteBatch(ctx, ids); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

// List returns every record in insertion order.
func (s *RecordService) List(ctx context.Context) ([]core.Record, error) {
	return s.store.ListAll(ctx)
}

func (s *RecordService) publishExport(ctx context.Context, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordExport(ctx, id); err != nil {
		// The record is saved locally; the worker's pending scan will
		// pick it up.
		slog.ErrorContext(ctx, "Failed to publish export message",
			"record_id", id, "error", err)
	}
}
