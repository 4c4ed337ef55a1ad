package domain

import "github.com/shopspring/decimal"

// EventKind discriminates custody journal records.
type EventKind string

const (
	EventDeposit           EventKind = "DEPOSIT"
	EventWithdrawal        EventKind = "WITHDRAWAL"
	EventTokenWithdrawal   EventKind = "TOKEN_WITHDRAWAL"
	EventTokensAdded       EventKind = "TOKENS_ADDED"
	EventTokenRemoved      EventKind = "TOKEN_REMOVED"
	EventEmergencyShutdown EventKind = "EMERGENCY_SHUTDOWN"
)

// Event is one entry in the custody journal. Only the fields relevant to
// the kind are set; the rest stay nil.
// Corresponds to custody_events table in PostgreSQL.
type Event struct {
	EventID     string           `json:"event_id"` // PRIMARY KEY, deterministic hash
	VaultID     string           `json:"vault_id"`
	Kind        EventKind        `json:"kind"`
	Sender      *Address         `json:"sender,omitempty"`    // DEPOSIT
	Recipient   *Address         `json:"recipient,omitempty"` // WITHDRAWAL, TOKEN_WITHDRAWAL
	Token       *TokenID         `json:"token,omitempty"`     // TOKEN_WITHDRAWAL, TOKEN_REMOVED
	Tokens      []TokenID        `json:"tokens,omitempty"`    // TOKENS_ADDED: the input batch, unfiltered
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Balance     *decimal.Decimal `json:"balance,omitempty"` // resulting native balance
	Active      *bool            `json:"active,omitempty"`  // EMERGENCY_SHUTDOWN
	TimestampMs int64            `json:"timestamp_ms"`      // ledger time in milliseconds
	Seq         uint64           `json:"seq"`               // per-vault emission sequence
	CreatedAt   int64            `json:"created_at"`        // record creation timestamp (ms)
}
