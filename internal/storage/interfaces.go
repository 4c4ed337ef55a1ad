package storage

import (
	"context"

	"custody-vault/internal/domain"
)

// EventStore provides access to custody_events storage. The journal is
// append-only.
type EventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.Event) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.Event) error

	// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, eventID string) (*domain.Event, error)

	// GetByKind retrieves all events of a kind for a vault, ordered by seq ASC.
	GetByKind(ctx context.Context, vaultID string, kind domain.EventKind) ([]*domain.Event, error)

	// GetByTimeRange retrieves a vault's events within [start, end] milliseconds
	// (inclusive), ordered by seq ASC.
	GetByTimeRange(ctx context.Context, vaultID string, start, end int64) ([]*domain.Event, error)

	// GetRecent retrieves a vault's most recent events, newest first.
	GetRecent(ctx context.Context, vaultID string, limit int) ([]*domain.Event, error)
}

// StateStore provides access to vault_state storage. One row per vault,
// overwritten on every save.
type StateStore interface {
	// Save upserts the vault snapshot.
	Save(ctx context.Context, s *domain.VaultState) error

	// Load retrieves a vault snapshot. Returns ErrNotFound if not exists.
	Load(ctx context.Context, vaultID string) (*domain.VaultState, error)
}

// TransferLogStore provides access to the analytics transfer log.
type TransferLogStore interface {
	// InsertBulk adds multiple transfer points.
	InsertBulk(ctx context.Context, points []*domain.TransferLogPoint) error

	// OutflowByDay aggregates a vault's outflow per asset per UTC day within
	// [start, end] milliseconds (inclusive).
	OutflowByDay(ctx context.Context, vaultID string, start, end int64) ([]*domain.OutflowAggregate, error)
}
