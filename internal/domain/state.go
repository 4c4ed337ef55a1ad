package domain

import "github.com/shopspring/decimal"

// VaultState is the persisted snapshot of one custodial instance.
// Corresponds to vault_state table in PostgreSQL.
type VaultState struct {
	VaultID         string          // PRIMARY KEY
	Owner           Address         // exactly one live owner at all times
	Paused          bool            // gates value-moving operations
	DailyLimit      decimal.Decimal // zero disables quota enforcement
	SpentToday      decimal.Decimal
	DayIndex        int64     // ledger day of the spentToday figure
	SupportedTokens []TokenID // registry enumeration order
	UpdatedAt       int64     // Unix timestamp in milliseconds
}
