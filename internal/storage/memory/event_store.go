// Package memory provides in-memory storage implementations used in
// tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"custody-vault/internal/domain"
	"custody-vault/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Event // keyed by event_id
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[string]*domain.Event),
	}
}

var _ storage.EventStore = (*EventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(_ context.Context, e *domain.Event) error {
	if e == nil || e.EventID == "" || e.VaultID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := cloneEvent(e)
	if copy.CreatedAt == 0 {
		copy.CreatedAt = time.Now().UnixMilli()
	}
	s.data[e.EventID] = copy
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" || e.VaultID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.EventID] = struct{}{}
	}

	// Second pass: insert all
	now := time.Now().UnixMilli()
	for _, e := range events {
		copy := cloneEvent(e)
		if copy.CreatedAt == 0 {
			copy.CreatedAt = now
		}
		s.data[e.EventID] = copy
	}

	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *EventStore) GetByID(_ context.Context, eventID string) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[eventID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneEvent(e), nil
}

// GetByKind retrieves all events of a kind for a vault, ordered by seq ASC.
func (s *EventStore) GetByKind(_ context.Context, vaultID string, kind domain.EventKind) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, e := range s.data {
		if e.VaultID == vaultID && e.Kind == kind {
			result = append(result, cloneEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result, nil
}

// GetByTimeRange retrieves a vault's events within [start, end] (inclusive), ordered by seq ASC.
func (s *EventStore) GetByTimeRange(_ context.Context, vaultID string, start, end int64) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, e := range s.data {
		if e.VaultID == vaultID && e.TimestampMs >= start && e.TimestampMs <= end {
			result = append(result, cloneEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result, nil
}

// GetRecent retrieves a vault's most recent events, newest first.
func (s *EventStore) GetRecent(_ context.Context, vaultID string, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for _, e := range s.data {
		if e.VaultID == vaultID {
			result = append(result, cloneEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq > result[j].Seq
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// cloneEvent deep-copies an event, including pointer fields.
func cloneEvent(e *domain.Event) *domain.Event {
	copy := *e
	if e.Sender != nil {
		v := *e.Sender
		copy.Sender = &v
	}
	if e.Recipient != nil {
		v := *e.Recipient
		copy.Recipient = &v
	}
	if e.Token != nil {
		v := *e.Token
		copy.Token = &v
	}
	if e.Tokens != nil {
		copy.Tokens = append([]domain.TokenID(nil), e.Tokens...)
	}
	if e.Amount != nil {
		v := *e.Amount
		copy.Amount = &v
	}
	if e.Balance != nil {
		v := *e.Balance
		copy.Balance = &v
	}
	if e.Active != nil {
		v := *e.Active
		copy.Active = &v
	}
	return &copy
}
