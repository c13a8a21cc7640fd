package store

import (
	"context"

	"spendlog/internal/core"
)

// Ports for record persistence. The store owns the canonical copy of every
// record; listings hand out copies, never views into internal state.
type (
	RecordWriter interface {
		// Append persists a new record and returns a backend reference.
		Append(ctx context.Context, rec core.Record) (ref string, err error)
	}

	// RecordLister returns all records in insertion order.
	RecordLister interface {
		ListAll(ctx context.Context) ([]core.Record, error)
	}

	RecordUpdater interface {
		// Update replaces every mutable field of the record with the
		// given id. core.ErrRecordNotFound when the id is unknown.
		Update(ctx context.Context, rec core.Record) error
	}

	RecordDeleter interface {
		Delete(ctx context.Context, id string) error
		// DeleteBatch removes exactly the selected set or nothing.
		DeleteBatch(ctx context.Context, ids []string) error
	}

	// RecordStore is the full persistence surface.
	RecordStore interface {
		RecordWriter
		RecordLister
		RecordUpdater
		RecordDeleter
	}
)
