package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"custody-vault/internal/domain"
	"custody-vault/internal/storage"
)

func TestStateStore_SaveAndLoad(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	state := &domain.VaultState{
		VaultID:         "vault-1",
		Owner:           domain.Address("owner-1"),
		Paused:          false,
		DailyLimit:      decimal.NewFromInt(100),
		SpentToday:      decimal.NewFromInt(40),
		DayIndex:        19000,
		SupportedTokens: []domain.TokenID{"tok-a", "tok-b"},
		UpdatedAt:       1000,
	}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	result, err := store.Load(ctx, "vault-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.Owner != "owner-1" {
		t.Errorf("Owner mismatch: got %s", result.Owner)
	}
	if !result.SpentToday.Equal(decimal.NewFromInt(40)) {
		t.Errorf("SpentToday mismatch: got %s", result.SpentToday)
	}
	if len(result.SupportedTokens) != 2 {
		t.Errorf("Expected 2 tokens, got %d", len(result.SupportedTokens))
	}
}

func TestStateStore_SaveOverwrites(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	first := &domain.VaultState{VaultID: "vault-1", Owner: "owner-1", DailyLimit: decimal.NewFromInt(10)}
	second := &domain.VaultState{VaultID: "vault-1", Owner: "owner-2", DailyLimit: decimal.NewFromInt(20), Paused: true}

	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	result, err := store.Load(ctx, "vault-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.Owner != "owner-2" || !result.Paused {
		t.Errorf("Save did not overwrite: owner=%s paused=%v", result.Owner, result.Paused)
	}
}

func TestStateStore_LoadNotFound(t *testing.T) {
	store := NewStateStore()

	_, err := store.Load(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStateStore_InvalidInput(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	if err := store.Save(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil state: expected ErrInvalidInput, got %v", err)
	}
	if err := store.Save(ctx, &domain.VaultState{VaultID: "v"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("zero owner: expected ErrInvalidInput, got %v", err)
	}
}

func TestStateStore_CopySemantics(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	state := &domain.VaultState{
		VaultID:         "vault-1",
		Owner:           "owner-1",
		SupportedTokens: []domain.TokenID{"tok-a"},
	}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	state.SupportedTokens[0] = "tok-mutated"

	result, err := store.Load(ctx, "vault-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.SupportedTokens[0] != "tok-a" {
		t.Errorf("Stored state shares token slice with caller: %v", result.SupportedTokens)
	}
}
