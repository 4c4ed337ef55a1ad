package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-vault/internal/domain"
	"custody-vault/internal/storage"
)

func TestTransferLogStore_InsertAndAggregate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransferLogStore(conn)

	base := int64(1704067200000) // 2024-01-01T00:00:00Z
	day := int64(86400000)

	points := []*domain.TransferLogPoint{
		{VaultID: "vault-1", Asset: domain.AssetNative, Recipient: "r1", Amount: 1.5, TimestampMs: base},
		{VaultID: "vault-1", Asset: domain.AssetNative, Recipient: "r2", Amount: 2.5, TimestampMs: base + 3600000},
		{VaultID: "vault-1", Asset: "tok-a", Recipient: "r1", Amount: 10, TimestampMs: base},
		{VaultID: "vault-1", Asset: domain.AssetNative, Recipient: "r1", Amount: 7, TimestampMs: base + day},
		{VaultID: "vault-2", Asset: domain.AssetNative, Recipient: "r9", Amount: 99, TimestampMs: base},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	result, err := store.OutflowByDay(ctx, "vault-1", base, base+2*day)
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, "2024-01-01", result[0].Day)
	assert.Equal(t, domain.AssetNative, result[0].Asset)
	assert.InDelta(t, 4.0, result[0].Total, 1e-9)
	assert.Equal(t, uint64(2), result[0].Count)

	assert.Equal(t, "tok-a", result[1].Asset)
	assert.InDelta(t, 10.0, result[1].Total, 1e-9)

	assert.Equal(t, "2024-01-02", result[2].Day)
	assert.InDelta(t, 7.0, result[2].Total, 1e-9)
}

func TestTransferLogStore_TimeRangeFilter(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransferLogStore(conn)

	base := int64(1704067200000)
	points := []*domain.TransferLogPoint{
		{VaultID: "vault-1", Asset: domain.AssetNative, Recipient: "r1", Amount: 1, TimestampMs: base},
		{VaultID: "vault-1", Asset: domain.AssetNative, Recipient: "r1", Amount: 2, TimestampMs: base + 1000},
		{VaultID: "vault-1", Asset: domain.AssetNative, Recipient: "r1", Amount: 4, TimestampMs: base + 2000},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	result, err := store.OutflowByDay(ctx, "vault-1", base, base+1000)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.InDelta(t, 3.0, result[0].Total, 1e-9)
	assert.Equal(t, uint64(2), result[0].Count)
}

func TestTransferLogStore_InsertBulkValidation(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransferLogStore(conn)

	err := store.InsertBulk(ctx, []*domain.TransferLogPoint{{VaultID: "", Asset: "x"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	assert.NoError(t, store.InsertBulk(ctx, nil))
}
