// Package ledger defines the execution environment a vault runs against.
// The ledger owns balances and the transfer primitives; the vault only
// orchestrates them and never caches balances locally.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"custody-vault/internal/domain"
)

// Transfer-primitive failures surfaced by ledger implementations.
var (
	// ErrTransferRejected is returned when a transfer primitive signals
	// failure, whatever its native convention.
	ErrTransferRejected = errors.New("transfer rejected")

	// ErrUnknownToken is returned when the ledger has no asset registered
	// for a token id.
	ErrUnknownToken = errors.New("unknown token")
)

// Ledger is the external execution and persistence environment.
type Ledger interface {
	// NativeBalance returns the vault's current native asset balance.
	NativeBalance(ctx context.Context) (decimal.Decimal, error)

	// TokenBalance returns the vault's balance of the given token.
	// Unknown tokens report a zero balance.
	TokenBalance(ctx context.Context, token domain.TokenID) (decimal.Decimal, error)

	// Now returns ledger time. Quota day boundaries are resolved against
	// this clock, never the local one.
	Now(ctx context.Context) (time.Time, error)

	// Begin opens a transfer transaction. Mutations performed through the
	// returned Tx are kept on Commit and discarded on Rollback.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is an atomic group of transfer operations. Exactly one of Commit or
// Rollback must be called.
type Tx interface {
	// CreditNative records an inbound native transfer from sender and
	// returns the resulting balance.
	CreditNative(ctx context.Context, sender domain.Address, amount decimal.Decimal) (decimal.Decimal, error)

	// TransferNative moves native funds from the vault to recipient and
	// returns the resulting balance. May hand control to arbitrary
	// recipient code before returning.
	TransferNative(ctx context.Context, recipient domain.Address, amount decimal.Decimal) (decimal.Decimal, error)

	// TransferToken moves token funds from the vault to recipient through
	// the token's transfer capability.
	TransferToken(ctx context.Context, token domain.TokenID, recipient domain.Address, amount decimal.Decimal) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TokenHandle is the per-asset transfer capability. Implementations
// normalize the asset's native success convention, boolean return or
// failure signal, into a single error outcome: nil means the transfer
// happened, anything else means it did not.
type TokenHandle interface {
	Balance(holder domain.Address) decimal.Decimal
	Transfer(from, to domain.Address, amount decimal.Decimal) error
}
