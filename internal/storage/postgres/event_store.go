package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"custody-vault/internal/domain"
	"custody-vault/internal/observability"
	"custody-vault/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `
	event_id, vault_id, kind, sender, recipient, token, tokens,
	amount::text, balance::text, active, timestamp_ms, seq, created_at
`

const insertEventQuery = `
	INSERT INTO custody_events (
		event_id, vault_id, kind, sender, recipient, token, tokens,
		amount, balance, active, timestamp_ms, seq, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.Event) error {
	if e == nil || e.EventID == "" || e.VaultID == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	_, err := s.pool.Exec(ctx, insertEventQuery, insertEventArgs(e)...)
	observability.RecordDBQuery("postgres", "insert_event", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if e == nil || e.EventID == "" || e.VaultID == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertEventQuery, insertEventArgs(e)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *EventStore) GetByID(ctx context.Context, eventID string) (*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM custody_events
		WHERE event_id = $1
	`

	row := s.pool.QueryRow(ctx, query, eventID)
	e, err := scanEvent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get event by id: %w", err)
	}
	return e, nil
}

// GetByKind retrieves all events of a kind for a vault, ordered by seq ASC.
func (s *EventStore) GetByKind(ctx context.Context, vaultID string, kind domain.EventKind) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM custody_events
		WHERE vault_id = $1 AND kind = $2
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, vaultID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("get events by kind: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByTimeRange retrieves a vault's events within [start, end] (inclusive), ordered by seq ASC.
func (s *EventStore) GetByTimeRange(ctx context.Context, vaultID string, start, end int64) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM custody_events
		WHERE vault_id = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, vaultID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get events by time range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetRecent retrieves a vault's most recent events, newest first.
func (s *EventStore) GetRecent(ctx context.Context, vaultID string, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + eventColumns + `
		FROM custody_events
		WHERE vault_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, vaultID, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// insertEventArgs maps an event to the insert parameter list. Decimal
// values travel as strings; postgres coerces them to NUMERIC.
func insertEventArgs(e *domain.Event) []any {
	var sender, recipient, token *string
	if e.Sender != nil {
		v := e.Sender.String()
		sender = &v
	}
	if e.Recipient != nil {
		v := e.Recipient.String()
		recipient = &v
	}
	if e.Token != nil {
		v := e.Token.String()
		token = &v
	}

	var tokens []string
	for _, id := range e.Tokens {
		tokens = append(tokens, id.String())
	}

	var amount, balance *string
	if e.Amount != nil {
		v := e.Amount.String()
		amount = &v
	}
	if e.Balance != nil {
		v := e.Balance.String()
		balance = &v
	}

	createdAt := e.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	return []any{
		e.EventID, e.VaultID, string(e.Kind), sender, recipient, token, tokens,
		amount, balance, e.Active, e.TimestampMs, int64(e.Seq), createdAt,
	}
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var (
		e               domain.Event
		kind            string
		sender          *string
		recipient       *string
		token           *string
		tokens          []string
		amount, balance *string
		seq             int64
	)

	err := row.Scan(
		&e.EventID, &e.VaultID, &kind, &sender, &recipient, &token, &tokens,
		&amount, &balance, &e.Active, &e.TimestampMs, &seq, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = domain.EventKind(kind)
	e.Seq = uint64(seq)
	if sender != nil {
		v := domain.Address(*sender)
		e.Sender = &v
	}
	if recipient != nil {
		v := domain.Address(*recipient)
		e.Recipient = &v
	}
	if token != nil {
		v := domain.TokenID(*token)
		e.Token = &v
	}
	for _, id := range tokens {
		e.Tokens = append(e.Tokens, domain.TokenID(id))
	}
	if amount != nil {
		v, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", *amount, err)
		}
		e.Amount = &v
	}
	if balance != nil {
		v, err := decimal.NewFromString(*balance)
		if err != nil {
			return nil, fmt.Errorf("parse balance %q: %w", *balance, err)
		}
		e.Balance = &v
	}
	return &e, nil
}

func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var result []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return result, nil
}
