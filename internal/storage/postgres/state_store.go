package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"custody-vault/internal/domain"
	"custody-vault/internal/observability"
	"custody-vault/internal/storage"
)

// StateStore implements storage.StateStore using PostgreSQL.
type StateStore struct {
	pool *Pool
}

// NewStateStore creates a new StateStore.
func NewStateStore(pool *Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)

// Save upserts the vault snapshot.
func (s *StateStore) Save(ctx context.Context, state *domain.VaultState) error {
	if state == nil || state.VaultID == "" || state.Owner.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO vault_state (
			vault_id, owner, paused, daily_limit, spent_today, day_index,
			supported_tokens, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (vault_id) DO UPDATE SET
			owner = EXCLUDED.owner,
			paused = EXCLUDED.paused,
			daily_limit = EXCLUDED.daily_limit,
			spent_today = EXCLUDED.spent_today,
			day_index = EXCLUDED.day_index,
			supported_tokens = EXCLUDED.supported_tokens,
			updated_at = EXCLUDED.updated_at
	`

	tokens := make([]string, 0, len(state.SupportedTokens))
	for _, id := range state.SupportedTokens {
		tokens = append(tokens, id.String())
	}

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		state.VaultID,
		state.Owner.String(),
		state.Paused,
		state.DailyLimit.String(),
		state.SpentToday.String(),
		state.DayIndex,
		tokens,
		state.UpdatedAt,
	)
	observability.RecordDBQuery("postgres", "save_state", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("save vault state: %w", err)
	}
	return nil
}

// Load retrieves a vault snapshot. Returns ErrNotFound if not exists.
func (s *StateStore) Load(ctx context.Context, vaultID string) (*domain.VaultState, error) {
	query := `
		SELECT vault_id, owner, paused, daily_limit::text, spent_today::text,
		       day_index, supported_tokens, updated_at
		FROM vault_state
		WHERE vault_id = $1
	`

	var (
		state             domain.VaultState
		owner             string
		limitStr, spentStr string
		tokens            []string
	)
	err := s.pool.QueryRow(ctx, query, vaultID).Scan(
		&state.VaultID, &owner, &state.Paused, &limitStr, &spentStr,
		&state.DayIndex, &tokens, &state.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load vault state: %w", err)
	}

	state.Owner = domain.Address(owner)
	if state.DailyLimit, err = decimal.NewFromString(limitStr); err != nil {
		return nil, fmt.Errorf("parse daily limit %q: %w", limitStr, err)
	}
	if state.SpentToday, err = decimal.NewFromString(spentStr); err != nil {
		return nil, fmt.Errorf("parse spent today %q: %w", spentStr, err)
	}
	for _, id := range tokens {
		state.SupportedTokens = append(state.SupportedTokens, domain.TokenID(id))
	}
	return &state, nil
}
