// Package memory provides an in-memory ledger.Ledger for tests and the
// service's --use-memory mode. Receive hooks model the reentrancy hazard:
// a hook runs while an outbound transfer is in flight and may call back
// into the vault.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"custody-vault/internal/domain"
	"custody-vault/internal/ledger"
)

// Ledger is an in-memory implementation of ledger.Ledger for a single
// vault account.
type Ledger struct {
	mu     sync.Mutex
	vault  domain.Address
	native decimal.Decimal
	tokens map[domain.TokenID]ledger.TokenHandle
	now    time.Time

	// nativeHook runs during TransferNative, after the debit is applied.
	nativeHook func(recipient domain.Address, amount decimal.Decimal)

	// failNativeOnce makes the next native transfer signal failure.
	failNativeOnce bool
}

// NewLedger creates an in-memory ledger holding the given vault account.
func NewLedger(vault domain.Address) *Ledger {
	return &Ledger{
		vault:  vault,
		native: decimal.Zero,
		tokens: make(map[domain.TokenID]ledger.TokenHandle),
		now:    time.Unix(0, 0).UTC(),
	}
}

// FundNative credits the vault's native balance directly. Test setup
// only; goes around the deposit path.
func (l *Ledger) FundNative(amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.native = l.native.Add(amount)
}

// RegisterToken installs the transfer capability for a token asset.
func (l *Ledger) RegisterToken(id domain.TokenID, handle ledger.TokenHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[id] = handle
}

// SetNow pins ledger time.
func (l *Ledger) SetNow(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = t
}

// Advance moves ledger time forward.
func (l *Ledger) Advance(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = l.now.Add(d)
}

// SetNativeReceiveHook installs a callback that runs while a native
// transfer is in flight.
func (l *Ledger) SetNativeReceiveHook(fn func(recipient domain.Address, amount decimal.Decimal)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nativeHook = fn
}

// FailNextNativeTransfer makes the next native transfer primitive report
// failure.
func (l *Ledger) FailNextNativeTransfer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNativeOnce = true
}

// NativeBalance returns the vault's native balance.
func (l *Ledger) NativeBalance(_ context.Context) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.native, nil
}

// TokenBalance returns the vault's balance of token. Unknown tokens
// report zero.
func (l *Ledger) TokenBalance(_ context.Context, token domain.TokenID) (decimal.Decimal, error) {
	l.mu.Lock()
	handle, ok := l.tokens[token]
	l.mu.Unlock()
	if !ok {
		return decimal.Zero, nil
	}
	return handle.Balance(l.vault), nil
}

// Now returns ledger time.
func (l *Ledger) Now(_ context.Context) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now, nil
}

// Begin opens a transaction. Mutations apply live and are reverted
// through an undo log on Rollback, so a reentrant call observes the
// mid-transaction state, like it would on a real ledger.
func (l *Ledger) Begin(_ context.Context) (ledger.Tx, error) {
	return &tx{l: l}, nil
}

// Compile-time interface check.
var _ ledger.Ledger = (*Ledger)(nil)

// tx implements ledger.Tx with an undo log.
type tx struct {
	l      *Ledger
	undo   []func()
	closed bool
}

func (t *tx) CreditNative(_ context.Context, _ domain.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	if t.closed {
		return decimal.Zero, fmt.Errorf("transaction closed")
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive amount", ledger.ErrTransferRejected)
	}

	t.l.mu.Lock()
	t.l.native = t.l.native.Add(amount)
	balance := t.l.native
	t.l.mu.Unlock()

	t.undo = append(t.undo, func() {
		t.l.native = t.l.native.Sub(amount)
	})
	return balance, nil
}

func (t *tx) TransferNative(_ context.Context, recipient domain.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	if t.closed {
		return decimal.Zero, fmt.Errorf("transaction closed")
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive amount", ledger.ErrTransferRejected)
	}

	t.l.mu.Lock()
	if t.l.failNativeOnce {
		t.l.failNativeOnce = false
		t.l.mu.Unlock()
		return decimal.Zero, fmt.Errorf("%w: primitive reported failure", ledger.ErrTransferRejected)
	}
	if t.l.native.LessThan(amount) {
		t.l.mu.Unlock()
		return decimal.Zero, fmt.Errorf("%w: insufficient ledger balance", ledger.ErrTransferRejected)
	}
	t.l.native = t.l.native.Sub(amount)
	balance := t.l.native
	hook := t.l.nativeHook
	t.l.mu.Unlock()

	t.undo = append(t.undo, func() {
		t.l.native = t.l.native.Add(amount)
	})

	// The reentrancy window: the debit above is already visible.
	if hook != nil {
		hook(recipient, amount)
	}
	return balance, nil
}

func (t *tx) TransferToken(_ context.Context, token domain.TokenID, recipient domain.Address, amount decimal.Decimal) error {
	if t.closed {
		return fmt.Errorf("transaction closed")
	}

	t.l.mu.Lock()
	handle, ok := t.l.tokens[token]
	from := t.l.vault
	t.l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrUnknownToken, token)
	}

	if err := handle.Transfer(from, recipient, amount); err != nil {
		return err
	}

	if adj, ok := handle.(balanceAdjuster); ok {
		t.undo = append(t.undo, func() {
			adj.adjust(recipient, amount.Neg())
			adj.adjust(from, amount)
		})
	}
	return nil
}

func (t *tx) Commit(_ context.Context) error {
	if t.closed {
		return fmt.Errorf("transaction closed")
	}
	t.closed = true
	t.undo = nil
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	if t.closed {
		return fmt.Errorf("transaction closed")
	}
	t.closed = true

	t.l.mu.Lock()
	defer t.l.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	return nil
}
