package adapters

import (
	"context"

	"spendlog/internal/core"
	"spendlog/internal/services"
	"spendlog/internal/storage"
	"spendlog/internal/store"
)

// SQLiteAdapter exposes the SQLite repository as a plain record store
// while routing mutations through RecordService so every write also
// queues an export message.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.RecordService
}

var _ store.RecordStore = (*SQLiteAdapter)(nil)

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.RecordService) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage: storage,
		service: service,
	}
}

// Append implements store.RecordWriter
func (a *SQLiteAdapter) Append(ctx context.Context, rec core.Record) (string, error) {
	return a.service.Create(ctx, rec)
}

// ListAll implements store.RecordLister
func (a *SQLiteAdapter) ListAll(ctx context.Context) ([]core.Record, error) {
	return a.storage.ListAll(ctx)
}

// Update implements store.RecordUpdater
func (a *SQLiteAdapter) Update(ctx context.Context, rec core.Record) error {
	return a.service.Update(ctx, rec)
}

// Delete implements store.RecordDeleter
func (a *SQLiteAdapter) Delete(ctx context.Context, id string) error {
	return a.service.Delete(ctx, id)
}

// DeleteBatch implements store.RecordDeleter
func (a *SQLiteAdapter) DeleteBatch(ctx context.Context, ids []string) error {
	return a.service.DeleteBatch(ctx, ids)
}

// RecentDiagnostics exposes the archived parse payloads, newest first.
func (a *SQLiteAdapter) RecentDiagnostics(ctx context.Context, limit int) ([]storage.DiagnosticRow, error) {
	return a.storage.RecentDiagnostics(ctx, limit)
}
