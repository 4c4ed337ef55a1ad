package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"custody-vault/internal/domain"
	"custody-vault/internal/storage"
)

// TransferLogStore is an in-memory implementation of storage.TransferLogStore.
type TransferLogStore struct {
	mu   sync.RWMutex
	data []*domain.TransferLogPoint
}

// NewTransferLogStore creates a new in-memory transfer log store.
func NewTransferLogStore() *TransferLogStore {
	return &TransferLogStore{}
}

var _ storage.TransferLogStore = (*TransferLogStore)(nil)

// InsertBulk adds multiple transfer points.
func (s *TransferLogStore) InsertBulk(_ context.Context, points []*domain.TransferLogPoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil || p.VaultID == "" || p.Asset == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		copy := *p
		s.data = append(s.data, &copy)
	}
	return nil
}

// OutflowByDay aggregates a vault's outflow per asset per UTC day within
// [start, end] (inclusive).
func (s *TransferLogStore) OutflowByDay(_ context.Context, vaultID string, start, end int64) ([]*domain.OutflowAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		asset string
		day   string
	}
	agg := make(map[key]*domain.OutflowAggregate)
	for _, p := range s.data {
		if p.VaultID != vaultID || p.TimestampMs < start || p.TimestampMs > end {
			continue
		}
		day := time.UnixMilli(p.TimestampMs).UTC().Format("2006-01-02")
		k := key{asset: p.Asset, day: day}
		a, exists := agg[k]
		if !exists {
			a = &domain.OutflowAggregate{VaultID: vaultID, Asset: p.Asset, Day: day}
			agg[k] = a
		}
		a.Total += p.Amount
		a.Count++
	}

	result := make([]*domain.OutflowAggregate, 0, len(agg))
	for _, a := range agg {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Day != result[j].Day {
			return result[i].Day < result[j].Day
		}
		return result[i].Asset < result[j].Asset
	})
	return result, nil
}
