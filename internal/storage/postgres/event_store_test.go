package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-vault/internal/domain"
	"custody-vault/internal/storage"
)

func createTestEvent(eventID string, seq uint64, ts int64, kind domain.EventKind) *domain.Event {
	amount := decimal.RequireFromString("2.5")
	balance := decimal.RequireFromString("7.5")
	return &domain.Event{
		EventID:     eventID,
		VaultID:     "vault-test",
		Kind:        kind,
		Recipient:   ptr(domain.Address("recipient-1")),
		Amount:      &amount,
		Balance:     &balance,
		TimestampMs: ts,
		Seq:         seq,
	}
}

func TestEventStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(pool)

	e := createTestEvent("ev-001", 1, 1000, domain.EventWithdrawal)
	require.NoError(t, store.Insert(ctx, e))

	retrieved, err := store.GetByID(ctx, "ev-001")
	require.NoError(t, err)

	assert.Equal(t, e.EventID, retrieved.EventID)
	assert.Equal(t, e.VaultID, retrieved.VaultID)
	assert.Equal(t, e.Kind, retrieved.Kind)
	require.NotNil(t, retrieved.Recipient)
	assert.Equal(t, *e.Recipient, *retrieved.Recipient)
	require.NotNil(t, retrieved.Amount)
	assert.True(t, e.Amount.Equal(*retrieved.Amount), "amount: got %s", retrieved.Amount)
	require.NotNil(t, retrieved.Balance)
	assert.True(t, e.Balance.Equal(*retrieved.Balance), "balance: got %s", retrieved.Balance)
	assert.Equal(t, e.TimestampMs, retrieved.TimestampMs)
	assert.Equal(t, e.Seq, retrieved.Seq)
	assert.Nil(t, retrieved.Sender)
	assert.Nil(t, retrieved.Token)
	assert.Nil(t, retrieved.Active)
	assert.NotZero(t, retrieved.CreatedAt)
}

func TestEventStore_OptionalFields(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(pool)

	e := &domain.Event{
		EventID:     "ev-batch",
		VaultID:     "vault-test",
		Kind:        domain.EventTokensAdded,
		Tokens:      []domain.TokenID{"tok-a", "tok-b", "tok-a"},
		TimestampMs: 2000,
		Seq:         2,
	}
	require.NoError(t, store.Insert(ctx, e))

	retrieved, err := store.GetByID(ctx, "ev-batch")
	require.NoError(t, err)
	assert.Equal(t, []domain.TokenID{"tok-a", "tok-b", "tok-a"}, retrieved.Tokens)
	assert.Nil(t, retrieved.Amount)

	shutdown := &domain.Event{
		EventID:     "ev-shutdown",
		VaultID:     "vault-test",
		Kind:        domain.EventEmergencyShutdown,
		Active:      ptr(true),
		TimestampMs: 3000,
		Seq:         3,
	}
	require.NoError(t, store.Insert(ctx, shutdown))

	retrieved, err = store.GetByID(ctx, "ev-shutdown")
	require.NoError(t, err)
	require.NotNil(t, retrieved.Active)
	assert.True(t, *retrieved.Active)
}

func TestEventStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(pool)

	e := createTestEvent("ev-dup", 1, 1000, domain.EventDeposit)
	require.NoError(t, store.Insert(ctx, e))

	err := store.Insert(ctx, e)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestEventStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEventStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEventStore_InsertBulkAtomicOnDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(pool)

	require.NoError(t, store.Insert(ctx, createTestEvent("ev-1", 1, 1000, domain.EventDeposit)))

	batch := []*domain.Event{
		createTestEvent("ev-2", 2, 2000, domain.EventDeposit),
		createTestEvent("ev-1", 1, 1000, domain.EventDeposit), // duplicate
	}
	err := store.InsertBulk(ctx, batch)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The transaction must have rolled back the first element.
	_, err = store.GetByID(ctx, "ev-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEventStore_Queries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(pool)

	events := []*domain.Event{
		createTestEvent("ev-1", 1, 1000, domain.EventDeposit),
		createTestEvent("ev-2", 2, 2000, domain.EventWithdrawal),
		createTestEvent("ev-3", 3, 3000, domain.EventWithdrawal),
		createTestEvent("ev-4", 4, 4000, domain.EventDeposit),
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	// Another vault's events must not leak in.
	other := createTestEvent("ev-other", 1, 1500, domain.EventWithdrawal)
	other.VaultID = "vault-other"
	require.NoError(t, store.Insert(ctx, other))

	byKind, err := store.GetByKind(ctx, "vault-test", domain.EventWithdrawal)
	require.NoError(t, err)
	require.Len(t, byKind, 2)
	assert.Equal(t, uint64(2), byKind[0].Seq)
	assert.Equal(t, uint64(3), byKind[1].Seq)

	byRange, err := store.GetByTimeRange(ctx, "vault-test", 2000, 3000)
	require.NoError(t, err)
	require.Len(t, byRange, 2)
	assert.Equal(t, "ev-2", byRange[0].EventID)
	assert.Equal(t, "ev-3", byRange[1].EventID)

	recent, err := store.GetRecent(ctx, "vault-test", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, uint64(4), recent[0].Seq)
	assert.Equal(t, uint64(2), recent[2].Seq)
}
