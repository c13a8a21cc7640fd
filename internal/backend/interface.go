package backend

import (
	"context"

	"spendlog/internal/amqp"
	"spendlog/internal/store"
)

// Backend is the storage surface the HTTP layer works against. Both the
// sqlite and the in-memory backend satisfy it.
type Backend interface {
	store.RecordStore
}

// CleanupFunc releases backend resources on shutdown.
type CleanupFunc func() error

// BackendResult bundles the backend with its cleanup. AMQP is non-nil
// only when the sqlite backend connected to a broker; the remote parser
// uses it for diagnostics.
type BackendResult struct {
	Backend Backend
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
