package memory

import (
	"context"
	"sync"

	"custody-vault/internal/domain"
	"custody-vault/internal/storage"
)

// StateStore is an in-memory implementation of storage.StateStore.
type StateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.VaultState // keyed by vault_id
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{
		data: make(map[string]*domain.VaultState),
	}
}

var _ storage.StateStore = (*StateStore)(nil)

// Save upserts the vault snapshot.
func (s *StateStore) Save(_ context.Context, state *domain.VaultState) error {
	if state == nil || state.VaultID == "" || state.Owner.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[state.VaultID] = cloneState(state)
	return nil
}

// Load retrieves a vault snapshot. Returns ErrNotFound if not exists.
func (s *StateStore) Load(_ context.Context, vaultID string) (*domain.VaultState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.data[vaultID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneState(state), nil
}

func cloneState(state *domain.VaultState) *domain.VaultState {
	copy := *state
	if state.SupportedTokens != nil {
		copy.SupportedTokens = append([]domain.TokenID(nil), state.SupportedTokens...)
	}
	return &copy
}
