package memory

import (
	"fmt"

	"github.com/shopspring/decimal"

	"custody-vault/internal/domain"
	"custody-vault/internal/ledger"
)

// balanceAdjuster lets the transaction undo log reverse a handle's
// transfer without going back through the transfer primitive.
type balanceAdjuster interface {
	adjust(holder domain.Address, delta decimal.Decimal)
}

// tokenAccounts is the balance book shared by the in-memory token kinds.
// Not safe for concurrent use; the custody model executes one operation
// at a time.
type tokenAccounts struct {
	balances map[domain.Address]decimal.Decimal
}

func newTokenAccounts() tokenAccounts {
	return tokenAccounts{balances: make(map[domain.Address]decimal.Decimal)}
}

// Balance returns holder's balance.
func (a *tokenAccounts) Balance(holder domain.Address) decimal.Decimal {
	if b, ok := a.balances[holder]; ok {
		return b
	}
	return decimal.Zero
}

// Mint credits holder. Test setup only.
func (a *tokenAccounts) Mint(holder domain.Address, amount decimal.Decimal) {
	a.adjust(holder, amount)
}

func (a *tokenAccounts) adjust(holder domain.Address, delta decimal.Decimal) {
	a.balances[holder] = a.Balance(holder).Add(delta)
}

// BoolToken emulates an asset whose transfer primitive reports success
// with a boolean instead of a failure signal. Transfer normalizes that
// convention into an error outcome, as ledger.TokenHandle requires.
type BoolToken struct {
	tokenAccounts
	failNext bool
	hook     func(to domain.Address, amount decimal.Decimal)
}

// NewBoolToken creates a boolean-convention token asset.
func NewBoolToken() *BoolToken {
	return &BoolToken{tokenAccounts: newTokenAccounts()}
}

// FailNext makes the next transfer return false.
func (t *BoolToken) FailNext() {
	t.failNext = true
}

// SetReceiveHook installs a callback that runs while a transfer is in
// flight.
func (t *BoolToken) SetReceiveHook(fn func(to domain.Address, amount decimal.Decimal)) {
	t.hook = fn
}

// Transfer implements ledger.TokenHandle.
func (t *BoolToken) Transfer(from, to domain.Address, amount decimal.Decimal) error {
	if !t.send(from, to, amount) {
		return fmt.Errorf("%w: primitive returned false", ledger.ErrTransferRejected)
	}
	return nil
}

// send is the boolean-convention primitive.
func (t *BoolToken) send(from, to domain.Address, amount decimal.Decimal) bool {
	if t.failNext {
		t.failNext = false
		return false
	}
	if !amount.IsPositive() {
		return false
	}
	if t.Balance(from).LessThan(amount) {
		return false
	}
	t.adjust(from, amount.Neg())
	t.adjust(to, amount)
	if t.hook != nil {
		t.hook(to, amount)
	}
	return true
}

// Compile-time interface checks.
var (
	_ ledger.TokenHandle = (*BoolToken)(nil)
	_ balanceAdjuster    = (*BoolToken)(nil)
)

// RevertToken emulates an asset whose transfer primitive signals failure
// explicitly instead of returning a boolean.
type RevertToken struct {
	tokenAccounts
	failNext bool
	hook     func(to domain.Address, amount decimal.Decimal)
}

// NewRevertToken creates a fail-signal token asset.
func NewRevertToken() *RevertToken {
	return &RevertToken{tokenAccounts: newTokenAccounts()}
}

// FailNext makes the next transfer signal failure.
func (t *RevertToken) FailNext() {
	t.failNext = true
}

// SetReceiveHook installs a callback that runs while a transfer is in
// flight.
func (t *RevertToken) SetReceiveHook(fn func(to domain.Address, amount decimal.Decimal)) {
	t.hook = fn
}

// Transfer implements ledger.TokenHandle.
func (t *RevertToken) Transfer(from, to domain.Address, amount decimal.Decimal) error {
	if t.failNext {
		t.failNext = false
		return fmt.Errorf("transfer reverted")
	}
	if !amount.IsPositive() {
		return fmt.Errorf("transfer reverted: non-positive amount")
	}
	if t.Balance(from).LessThan(amount) {
		return fmt.Errorf("transfer reverted: insufficient balance")
	}
	t.adjust(from, amount.Neg())
	t.adjust(to, amount)
	if t.hook != nil {
		t.hook(to, amount)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ ledger.TokenHandle = (*RevertToken)(nil)
	_ balanceAdjuster    = (*RevertToken)(nil)
)
