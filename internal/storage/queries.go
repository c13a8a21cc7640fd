package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the subset of *sql.DB / *sql.Tx the queries need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns queries bound to an open transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Export status values for the background sheets exporter.
const (
	ExportPending = "pending"
	ExportDone    = "done"
	ExportError   = "error"
)

type RecordRow struct {
	ID           string
	Icon         string
	Title        string
	Amount       int64
	Category     string
	Timestamp    string
	Note         sql.NullString
	ExportStatus string
	CreatedAt    time.Time
}

type DiagnosticRow struct {
	ID        int64
	Prompt    string
	Body      string
	CreatedAt time.Time
}

type CreateRecordParams struct {
	ID        string
	Icon      string
	Title     string
	Amount    int64
	Category  string
	Timestamp string
	Note      sql.NullString
}

type UpdateRecordParams struct {
	ID        string
	Icon      string
	Title     string
	Amount    int64
	Category  string
	Timestamp string
	Note      sql.NullString
}

const createRecord = `
INSERT INTO records (id, icon, title, amount, category, timestamp, note)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateRecord(ctx context.Context, arg CreateRecordParams) error {
	_, err := q.db.ExecContext(ctx, createRecord,
		arg.ID, arg.Icon, arg.Title, arg.Amount, arg.Category, arg.Timestamp, arg.Note)
	return err
}

const getRecord = `
SELECT id, icon, title, amount, category, timestamp, note, export_status, created_at
FROM records WHERE id = ?
`

func (q *Queries) GetRecord(ctx context.Context, id string) (RecordRow, error) {
	row := q.db.QueryRowContext(ctx, getRecord, id)
	var r RecordRow
	err := row.Scan(&r.ID, &r.Icon, &r.Title, &r.Amount, &r.Category,
		&r.Timestamp, &r.Note, &r.ExportStatus, &r.CreatedAt)
	return r, err
}

const listRecords = `
SELECT id, icon, title, amount, category, timestamp, note, export_status, created_at
FROM records ORDER BY rowid
`

func (q *Queries) ListRecords(ctx context.Context) ([]RecordRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecords)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(&r.ID, &r.Icon, &r.Title, &r.Amount, &r.Category,
			&r.Timestamp, &r.Note, &r.ExportStatus, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const updateRecord = `
UPDATE records
SET icon = ?, title = ?, amount = ?, category = ?, timestamp = ?, note = ?, export_status = 'pending'
WHERE id = ?
`

// UpdateRecord replaces the mutable fields and re-queues the record for
// export. Returns the number of affected rows.
func (q *Queries) UpdateRecord(ctx context.Context, arg UpdateRecordParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateRecord,
		arg.Icon, arg.Title, arg.Amount, arg.Category, arg.Timestamp, arg.Note, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteRecord = `DELETE FROM records WHERE id = ?`

func (q *Queries) DeleteRecord(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteRecord, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listPendingExport = `
SELECT id, icon, title, amount, category, timestamp, note, export_status, created_at
FROM records WHERE export_status = 'pending' ORDER BY rowid LIMIT ?
`

func (q *Queries) ListPendingExport(ctx context.Context, limit int64) ([]RecordRow, error) {
	rows, err := q.db.QueryContext(ctx, listPendingExport, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(&r.ID, &r.Icon, &r.Title, &r.Amount, &r.Category,
			&r.Timestamp, &r.Note, &r.ExportStatus, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const setExportStatus = `UPDATE records SET export_status = ? WHERE id = ?`

func (q *Queries) SetExportStatus(ctx context.Context, id, status string) error {
	_, err := q.db.ExecContext(ctx, setExportStatus, status, id)
	return err
}

const createDiagnostic = `INSERT INTO diagnostics (prompt, body) VALUES (?, ?)`

func (q *Queries) CreateDiagnostic(ctx context.Context, prompt, body string) error {
	_, err := q.db.ExecContext(ctx, createDiagnostic, prompt, body)
	return err
}

const listRecentDiagnostics = `
SELECT id, prompt, body, created_at
FROM diagnostics ORDER BY id DESC LIMIT ?
`

func (q *Queries) ListRecentDiagnostics(ctx context.Context, limit int64) ([]DiagnosticRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecentDiagnostics, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DiagnosticRow
	for rows.Next() {
		var d DiagnosticRow
		if err := rows.Scan(&d.ID, &d.Prompt, &d.Body, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
