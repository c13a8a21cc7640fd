package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"spendlog/internal/core"
	"spendlog/internal/store"
	"spendlog/internal/wire"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the canonical record store plus the bookkeeping the
// background exporter and the diagnostics archive need.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ store.RecordStore = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append implements store.RecordWriter. The record id doubles as the
// backend reference.
func (r *SQLiteRepository) Append(ctx context.Context, rec core.Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	if rec.ID == "" {
		rec.ID = core.NewID()
	}

	err := r.queries.CreateRecord(ctx, CreateRecordParams{
		ID:        rec.ID,
		Icon:      rec.Icon,
		Title:     rec.Title,
		Amount:    rec.Amount,
		Category:  rec.Category,
		Timestamp: wire.FormatTimestamp(rec.Timestamp),
		Note:      noteToNull(rec.Note),
	})
	if err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}

	slog.InfoContext(ctx, "Record saved to SQLite",
		"id", rec.ID,
		"title", rec.Title,
		"amount", rec.Amount,
		"category", rec.Category)

	return rec.ID, nil
}

// ListAll implements store.RecordLister; rows come back in insertion order.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Record, error) {
	rows, err := r.queries.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := rowToRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns a single record by id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Record, error) {
	row, err := r.queries.GetRecord(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.ErrRecordNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rowToRecord(row)
}

// Update implements store.RecordUpdater.
func (r *SQLiteRepository) Update(ctx context.Context, rec core.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	affected, err := r.queries.UpdateRecord(ctx, UpdateRecordParams{
		ID:        rec.ID,
		Icon:      rec.Icon,
		Title:     rec.Title,
		Amount:    rec.Amount,
		Category:  rec.Category,
		Timestamp: wire.FormatTimestamp(rec.Timestamp),
		Note:      noteToNull(rec.Note),
	})
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if affected == 0 {
		return core.ErrRecordNotFound
	}
	return nil
}

// Delete implements store.RecordDeleter.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	affected, err := r.queries.DeleteRecord(ctx, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if affected == 0 {
		return core.ErrRecordNotFound
	}
	return nil
}

// DeleteBatch removes exactly the selected set inside one transaction; an
// unknown id rolls the whole batch back.
func (r *SQLiteRepository) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch delete: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	for _, id := range ids {
		affected, err := qtx.DeleteRecord(ctx, id)
		if err != nil {
			return fmt.Errorf("delete record %s: %w", id, err)
		}
		if affected == 0 {
			return core.ErrRecordNotFound
		}
	}
	return tx.Commit()
}

// ListPendingExport returns records the exporter has not synced yet.
func (r *SQLiteRepository) ListPendingExport(ctx context.Context, limit int) ([]core.Record, error) {
	rows, err := r.queries.ListPendingExport(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	out := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := rowToRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	return r.queries.SetExportStatus(ctx, id, ExportDone)
}

func (r *SQLiteRepository) MarkExportError(ctx context.Context, id string) error {
	return r.queries.SetExportStatus(ctx, id, ExportError)
}

// SaveDiagnostic archives a raw payload captured from a failed parse.
func (r *SQLiteRepository) SaveDiagnostic(ctx context.Context, prompt, body string) error {
	if err := r.queries.CreateDiagnostic(ctx, prompt, body); err != nil {
		return fmt.Errorf("save diagnostic: %w", err)
	}
	return nil
}

// RecentDiagnostics returns the newest archived payloads, newest first.
func (r *SQLiteRepository) RecentDiagnostics(ctx context.Context, limit int) ([]DiagnosticRow, error) {
	return r.queries.ListRecentDiagnostics(ctx, int64(limit))
}

func rowToRecord(row RecordRow) (core.Record, error) {
	ts, err := wire.ParseTimestamp(row.Timestamp)
	if err != nil {
		return core.Record{}, fmt.Errorf("record %s: bad timestamp %q: %w", row.ID, row.Timestamp, err)
	}
	return core.Record{
		ID:        row.ID,
		Icon:      row.Icon,
		Title:     row.Title,
		Amount:    row.Amount,
		Category:  row.Category,
		Timestamp: ts,
		Note:      row.Note.String,
	}, nil
}

func noteToNull(note string) sql.NullString {
	if note == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: note, Valid: true}
}
