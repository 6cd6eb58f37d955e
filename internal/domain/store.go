package domain

import (
	"context"
	"time"
)

// ExecutionStore is the append-only execution ledger. Appended records are
// rewritten in place only while non-terminal; a retry of a finished intent
// appends a fresh record under the same idempotency key.
type ExecutionStore interface {
	Append(ctx context.Context, rec ExecutionRecord) error

	// Update replaces the stored record with the given ID. Implementations
	// must refuse to overwrite a record that already reached a terminal
	// status.
	Update(ctx context.Context, rec ExecutionRecord) error

	GetByID(ctx context.Context, id string) (ExecutionRecord, error)

	// ListByIdempotencyKey returns every attempt recorded for one intent,
	// oldest first.
	ListByIdempotencyKey(ctx context.Context, key string) ([]ExecutionRecord, error)

	ListRecords(ctx context.Context, filter ExecutionFilter) ([]ExecutionRecord, error)

	DailyStats(ctx context.Context, signer string, day time.Time) (DailyStats, error)
}
