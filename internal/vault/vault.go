// Package vault implements the custody state machine: a single-owner
// vault over a ledger's native and token assets, with pause control,
// reentrancy exclusion, a rolling daily spending quota, and a dynamic
// registry of supported tokens.
//
// The ledger executes operations one at a time to completion; the only
// concurrency hazard is re-entry during an outbound transfer, which the
// guard excludes. Every operation is all-or-nothing: a failure reverts
// any state mutation the operation made.
package vault

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/shopspring/decimal"

	"custody-vault/internal/domain"
	"custody-vault/internal/eventid"
	"custody-vault/internal/ledger"
	"custody-vault/internal/observability"
	"custody-vault/internal/registry"
	"custody-vault/internal/storage"
)

// Options for creating a Vault.
type Options struct {
	// VaultID names the custodial instance. Defaults to "default".
	VaultID string

	// Owner is the controlling identity. Required, never zero.
	Owner domain.Address

	// Ledger is the execution environment. Required.
	Ledger ledger.Ledger

	// DailyLimit caps native outflow per ledger day. Zero disables the
	// quota.
	DailyLimit decimal.Decimal

	// Sink receives committed events. Optional.
	Sink Sink

	// States persists the vault snapshot after successful mutations.
	// Optional; a nil store means the vault is ephemeral.
	States storage.StateStore

	Logger *log.Logger
}

// Vault is one custodial instance. All mutating methods take the caller
// identity explicitly; access control happens here, not at the
// transport.
type Vault struct {
	id     string
	ledger ledger.Ledger
	sink   Sink
	states storage.StateStore
	logger *log.Logger

	guard guard

	mu       sync.Mutex // protects owner, paused, quota, registry, seq
	owner    domain.Address
	paused   bool
	quota    quota
	registry *registry.Registry
	seq      uint64
}

// TokenHolding pairs a registered token with its freshly queried
// balance.
type TokenHolding struct {
	Token   domain.TokenID  `json:"token"`
	Balance decimal.Decimal `json:"balance"`
}

// New creates a Vault.
func New(opts Options) (*Vault, error) {
	if opts.Owner.IsZero() {
		return nil, fmt.Errorf("vault: owner must not be zero")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("vault: ledger is required")
	}
	if opts.VaultID == "" {
		opts.VaultID = "default"
	}
	if opts.DailyLimit.IsNegative() {
		return nil, fmt.Errorf("vault: daily limit must not be negative")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[vault] ", log.LstdFlags)
	}

	return &Vault{
		id:       opts.VaultID,
		ledger:   opts.Ledger,
		sink:     opts.Sink,
		states:   opts.States,
		logger:   logger,
		owner:    opts.Owner,
		quota:    quota{limit: opts.DailyLimit, spentToday: decimal.Zero},
		registry: registry.New(),
	}, nil
}

// Restore rebuilds a vault from a persisted snapshot. Options fields
// covered by the snapshot (id, owner, daily limit) are taken from it.
func Restore(state *domain.VaultState, opts Options) (*Vault, error) {
	opts.VaultID = state.VaultID
	opts.Owner = state.Owner
	opts.DailyLimit = state.DailyLimit

	v, err := New(opts)
	if err != nil {
		return nil, err
	}
	v.paused = state.Paused
	v.quota.spentToday = state.SpentToday
	v.quota.dayIndex = state.DayIndex
	v.registry = registry.FromList(state.SupportedTokens)
	return v, nil
}

// ---- reads ----

// Owner returns the controlling identity.
func (v *Vault) Owner() domain.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.owner
}

// Paused reports whether value-moving operations are blocked.
func (v *Vault) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

// DailyLimit returns the quota limit. Zero means the quota is disabled.
func (v *Vault) DailyLimit() decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.quota.limit
}

// SpentToday returns the native outflow accounted against the current
// quota day.
func (v *Vault) SpentToday() decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.quota.spentToday
}

// Balance returns the vault's native balance, read from the ledger.
func (v *Vault) Balance(ctx context.Context) (decimal.Decimal, error) {
	return v.ledger.NativeBalance(ctx)
}

// TokenBalance returns the vault's balance of token, read from the
// ledger.
func (v *Vault) TokenBalance(ctx context.Context, token domain.TokenID) (decimal.Decimal, error) {
	return v.ledger.TokenBalance(ctx, token)
}

// SupportedTokens returns the registry's enumeration sequence.
func (v *Vault) SupportedTokens() []domain.TokenID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.registry.List()
}

// AllTokenBalances returns every registered token paired with its
// externally-queried balance, computed fresh on each call.
func (v *Vault) AllTokenBalances(ctx context.Context) ([]TokenHolding, error) {
	tokens := v.SupportedTokens()

	holdings := make([]TokenHolding, len(tokens))
	for i, token := range tokens {
		balance, err := v.ledger.TokenBalance(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("token balances: query %s: %w", token, err)
		}
		holdings[i] = TokenHolding{Token: token, Balance: balance}
	}
	return holdings, nil
}

// Snapshot returns the persistable state of the vault.
func (v *Vault) Snapshot() *domain.VaultState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked(0)
}

// ---- deposits ----

// Deposit records an inbound native transfer. Deposits are never gated:
// not by owner, not by pause. Money can always come in.
func (v *Vault) Deposit(ctx context.Context, sender domain.Address, amount decimal.Decimal) error {
	const op = "deposit"
	if !amount.IsPositive() {
		return v.fail(op, ErrInvalidAmount)
	}

	now, err := v.ledger.Now(ctx)
	if err != nil {
		return fmt.Errorf("%s: query ledger time: %w", op, err)
	}

	tx, err := v.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	balance, err := tx.CreditNative(ctx, sender, amount)
	if err != nil {
		_ = tx.Rollback(ctx)
		return v.fail(op, fmt.Errorf("%w: %v", ErrTransferFailed, err))
	}
	if err := tx.Commit(ctx); err != nil {
		return v.fail(op, fmt.Errorf("%w: commit: %v", ErrTransferFailed, err))
	}

	v.emit(ctx, &domain.Event{
		Kind:        domain.EventDeposit,
		Sender:      &sender,
		Amount:      &amount,
		Balance:     &balance,
		TimestampMs: now.UnixMilli(),
	})
	observability.RecordDeposit()
	return nil
}

// ---- native withdrawal ----

// Withdraw moves native funds to recipient. Owner-gated, pause-gated,
// reentrancy-guarded and quota-checked. Either every state change and
// the transfer happen, or none do.
func (v *Vault) Withdraw(ctx context.Context, caller, recipient domain.Address, amount decimal.Decimal) error {
	const op = "withdraw"
	if err := v.authorize(caller, true); err != nil {
		return v.fail(op, err)
	}
	if recipient.IsZero() {
		return v.fail(op, ErrInvalidRecipient)
	}
	if !amount.IsPositive() {
		return v.fail(op, ErrInvalidAmount)
	}
	if err := v.guard.enter(); err != nil {
		return v.fail(op, err)
	}
	defer v.guard.exit()

	now, err := v.ledger.Now(ctx)
	if err != nil {
		return fmt.Errorf("%s: query ledger time: %w", op, err)
	}
	balance, err := v.ledger.NativeBalance(ctx)
	if err != nil {
		return fmt.Errorf("%s: query balance: %w", op, err)
	}
	if balance.LessThan(amount) {
		return v.fail(op, ErrInsufficientFunds)
	}

	// Quota is accounted before the external transfer. The guard already
	// blocks reentry; this ordering is the second line of defense.
	v.mu.Lock()
	v.quota.rollover(dayIndex(now))
	if err := v.quota.reserve(amount); err != nil {
		v.mu.Unlock()
		return v.fail(op, err)
	}
	v.mu.Unlock()

	release := func() {
		v.mu.Lock()
		v.quota.release(amount)
		v.mu.Unlock()
	}

	tx, err := v.ledger.Begin(ctx)
	if err != nil {
		release()
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	newBalance, err := tx.TransferNative(ctx, recipient, amount)
	if err != nil {
		_ = tx.Rollback(ctx)
		release()
		return v.fail(op, fmt.Errorf("%w: %v", ErrTransferFailed, err))
	}
	if err := tx.Commit(ctx); err != nil {
		release()
		return v.fail(op, fmt.Errorf("%w: commit: %v", ErrTransferFailed, err))
	}

	nowMs := now.UnixMilli()
	v.persist(ctx, nowMs)
	v.emit(ctx, &domain.Event{
		Kind:        domain.EventWithdrawal,
		Recipient:   &recipient,
		Amount:      &amount,
		Balance:     &newBalance,
		TimestampMs: nowMs,
	})
	observability.RecordWithdrawal(domain.AssetNative)
	v.updateQuotaGauges()
	return nil
}

// ---- token withdrawal ----

// WithdrawToken moves token funds to recipient. Owner-gated,
// pause-gated, reentrancy-guarded. The token does not have to be in the
// registry: registration affects enumeration, not permission.
func (v *Vault) WithdrawToken(ctx context.Context, caller domain.Address, token domain.TokenID, amount decimal.Decimal, recipient domain.Address) error {
	const op = "withdraw_token"
	if err := v.authorize(caller, true); err != nil {
		return v.fail(op, err)
	}
	if token.IsZero() {
		return v.fail(op, ErrInvalidToken)
	}
	if recipient.IsZero() {
		return v.fail(op, ErrInvalidRecipient)
	}
	if !amount.IsPositive() {
		return v.fail(op, ErrInvalidAmount)
	}
	if err := v.guard.enter(); err != nil {
		return v.fail(op, err)
	}
	defer v.guard.exit()

	now, err := v.ledger.Now(ctx)
	if err != nil {
		return fmt.Errorf("%s: query ledger time: %w", op, err)
	}
	balance, err := v.ledger.TokenBalance(ctx, token)
	if err != nil {
		return fmt.Errorf("%s: query token balance: %w", op, err)
	}
	if balance.LessThan(amount) {
		return v.fail(op, ErrInsufficientTokenBalance)
	}

	tx, err := v.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	if err := tx.TransferToken(ctx, token, recipient, amount); err != nil {
		_ = tx.Rollback(ctx)
		return v.fail(op, fmt.Errorf("%w: %v", ErrTokenTransferFailed, err))
	}
	if err := tx.Commit(ctx); err != nil {
		return v.fail(op, fmt.Errorf("%w: commit: %v", ErrTokenTransferFailed, err))
	}

	v.emit(ctx, &domain.Event{
		Kind:        domain.EventTokenWithdrawal,
		Token:       &token,
		Recipient:   &recipient,
		Amount:      &amount,
		TimestampMs: now.UnixMilli(),
	})
	observability.RecordWithdrawal("token")
	return nil
}

// BatchWithdrawTokens performs the single-token withdrawal logic for
// each (token, amount) pair, in input order, inside one ledger
// transaction. A failure on any element aborts the whole batch: no
// partial completion is observable.
func (v *Vault) BatchWithdrawTokens(ctx context.Context, caller domain.Address, tokens []domain.TokenID, amounts []decimal.Decimal, recipient domain.Address) error {
	const op = "batch_withdraw_tokens"
	if err := v.authorize(caller, true); err != nil {
		return v.fail(op, err)
	}
	if len(tokens) != len(amounts) {
		return v.fail(op, ErrLengthMismatch)
	}
	if recipient.IsZero() {
		return v.fail(op, ErrInvalidRecipient)
	}
	if err := v.guard.enter(); err != nil {
		return v.fail(op, err)
	}
	defer v.guard.exit()

	now, err := v.ledger.Now(ctx)
	if err != nil {
		return fmt.Errorf("%s: query ledger time: %w", op, err)
	}
	nowMs := now.UnixMilli()

	tx, err := v.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	abort := func(err error) error {
		_ = tx.Rollback(ctx)
		return v.fail(op, err)
	}

	events := make([]*domain.Event, 0, len(tokens))
	for i := range tokens {
		token, amount := tokens[i], amounts[i]
		if token.IsZero() {
			return abort(fmt.Errorf("element %d: %w", i, ErrInvalidToken))
		}
		if !amount.IsPositive() {
			return abort(fmt.Errorf("element %d: %w", i, ErrInvalidAmount))
		}
		balance, err := v.ledger.TokenBalance(ctx, token)
		if err != nil {
			return abort(fmt.Errorf("element %d: query token balance: %v", i, err))
		}
		if balance.LessThan(amount) {
			return abort(fmt.Errorf("element %d: %w", i, ErrInsufficientTokenBalance))
		}
		if err := tx.TransferToken(ctx, token, recipient, amount); err != nil {
			return abort(fmt.Errorf("element %d: %w: %v", i, ErrTokenTransferFailed, err))
		}
		events = append(events, &domain.Event{
			Kind:        domain.EventTokenWithdrawal,
			Token:       &tokens[i],
			Recipient:   &recipient,
			Amount:      &amounts[i],
			TimestampMs: nowMs,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return v.fail(op, fmt.Errorf("%w: commit: %v", ErrTokenTransferFailed, err))
	}

	for _, e := range events {
		v.emit(ctx, e)
		observability.RecordWithdrawal("token")
	}
	return nil
}

// ---- recovery ----

// RecoverToken sweeps the vault's entire balance of token to the
// current owner. Owner-gated and guarded but deliberately not
// pause-gated: the emergency escape must work while paused. The
// registry is left untouched even if token is registered.
func (v *Vault) RecoverToken(ctx context.Context, caller domain.Address, token domain.TokenID) error {
	const op = "recover_token"
	if err := v.authorize(caller, false); err != nil {
		return v.fail(op, err)
	}
	if token.IsZero() {
		return v.fail(op, ErrInvalidToken)
	}
	if err := v.guard.enter(); err != nil {
		return v.fail(op, err)
	}
	defer v.guard.exit()

	balance, err := v.ledger.TokenBalance(ctx, token)
	if err != nil {
		return fmt.Errorf("%s: query token balance: %w", op, err)
	}
	if !balance.IsPositive() {
		return v.fail(op, ErrNothingToRecover)
	}

	v.mu.Lock()
	owner := v.owner
	v.mu.Unlock()

	tx, err := v.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	if err := tx.TransferToken(ctx, token, owner, balance); err != nil {
		_ = tx.Rollback(ctx)
		return v.fail(op, fmt.Errorf("%w: %v", ErrTokenTransferFailed, err))
	}
	if err := tx.Commit(ctx); err != nil {
		return v.fail(op, fmt.Errorf("%w: commit: %v", ErrTokenTransferFailed, err))
	}

	observability.RecordRecovery()
	return nil
}

// ---- registry ----

// AddSupportedTokens registers each id in tokens. Duplicates within the
// call are tolerated; a zero id anywhere aborts the whole call with
// nothing registered. The notification lists the input batch as given,
// including ids that were already present.
func (v *Vault) AddSupportedTokens(ctx context.Context, caller domain.Address, tokens []domain.TokenID) error {
	const op = "add_supported_tokens"
	if err := v.authorize(caller, false); err != nil {
		return v.fail(op, err)
	}
	if len(tokens) == 0 {
		return nil
	}

	// Validate the whole batch before touching the registry.
	for _, id := range tokens {
		if id.IsZero() {
			return v.fail(op, ErrInvalidToken)
		}
	}

	now, err := v.ledger.Now(ctx)
	if err != nil {
		return fmt.Errorf("%s: query ledger time: %w", op, err)
	}

	v.mu.Lock()
	for _, id := range tokens {
		v.registry.Add(id)
	}
	size := v.registry.Len()
	v.mu.Unlock()

	nowMs := now.UnixMilli()
	v.persist(ctx, nowMs)
	batch := make([]domain.TokenID, len(tokens))
	copy(batch, tokens)
	v.emit(ctx, &domain.Event{
		Kind:        domain.EventTokensAdded,
		Tokens:      batch,
		TimestampMs: nowMs,
	})
	observability.SetRegisteredTokens(size)
	return nil
}

// RemoveSupportedToken deregisters token.
func (v *Vault) RemoveSupportedToken(ctx context.Context, caller domain.Address, token domain.TokenID) error {
	const op = "remove_supported_token"
	if err := v.authorize(caller, false); err != nil {
		return v.fail(op, err)
	}

	now, err := v.ledger.Now(ctx)
	if err != nil {
		return fmt.Errorf("%s: query ledger time: %w", op, err)
	}

	v.mu.Lock()
	removed := v.registry.Remove(token)
	size := v.registry.Len()
	v.mu.Unlock()
	if !removed {
		return v.fail(op, ErrTokenNotSupported)
	}

	nowMs := now.UnixMilli()
	v.persist(ctx, nowMs)
	v.emit(ctx, &domain.Event{
		Kind:        domain.EventTokenRemoved,
		Token:       &token,
		TimestampMs: nowMs,
	})
	observability.SetRegisteredTokens(size)
	return nil
}

// ---- administration ----

// SetPaused flips the pause flag. Owner-gated; pausing gates
// value-moving operations only, never reads, recovery or the handoff.
func (v *Vault) SetPaused(ctx context.Context, caller domain.Address, active bool) error {
	const op = "set_paused"
	if err := v.authorize(caller, false); err != nil {
		return v.fail(op, err)
	}

	now, err := v.ledger.Now(ctx)
	if err != nil {
		return fmt.Errorf("%s: query ledger time: %w", op, err)
	}

	v.mu.Lock()
	v.paused = active
	v.mu.Unlock()

	nowMs := now.UnixMilli()
	v.persist(ctx, nowMs)
	v.emit(ctx, &domain.Event{
		Kind:        domain.EventEmergencyShutdown,
		Active:      &active,
		TimestampMs: nowMs,
	})
	return nil
}

// SetDailyLimit replaces the quota limit. Zero disables enforcement.
// spentToday is preserved so a lowered limit applies immediately.
func (v *Vault) SetDailyLimit(ctx context.Context, caller domain.Address, limit decimal.Decimal) error {
	const op = "set_daily_limit"
	if err := v.authorize(caller, false); err != nil {
		return v.fail(op, err)
	}
	if limit.IsNegative() {
		return v.fail(op, ErrInvalidAmount)
	}

	now, err := v.ledger.Now(ctx)
	if err != nil {
		return fmt.Errorf("%s: query ledger time: %w", op, err)
	}

	v.mu.Lock()
	v.quota.limit = limit
	v.mu.Unlock()

	v.persist(ctx, now.UnixMilli())
	v.updateQuotaGauges()
	return nil
}

// TransferOwnership hands the vault to newOwner. The old owner
// authorizes the handoff, so no owner-less window exists.
func (v *Vault) TransferOwnership(ctx context.Context, caller, newOwner domain.Address) error {
	const op = "transfer_ownership"
	if err := v.authorize(caller, false); err != nil {
		return v.fail(op, err)
	}
	if newOwner.IsZero() {
		return v.fail(op, ErrInvalidRecipient)
	}

	now, err := v.ledger.Now(ctx)
	if err != nil {
		return fmt.Errorf("%s: query ledger time: %w", op, err)
	}

	v.mu.Lock()
	v.owner = newOwner
	v.mu.Unlock()

	v.persist(ctx, now.UnixMilli())
	return nil
}

// ---- internals ----

// authorize verifies caller is the owner and, for value-moving
// operations, that the vault is not paused.
func (v *Vault) authorize(caller domain.Address, pausable bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if caller != v.owner {
		return ErrUnauthorized
	}
	if pausable && v.paused {
		return ErrPaused
	}
	return nil
}

// fail records the failure and wraps it with the operation name.
func (v *Vault) fail(op string, err error) error {
	observability.RecordOpError(op, Reason(err))
	return fmt.Errorf("%s: %w", op, err)
}

// emit assigns identity to the event and hands it to the sink.
func (v *Vault) emit(ctx context.Context, e *domain.Event) {
	v.mu.Lock()
	v.seq++
	e.Seq = v.seq
	v.mu.Unlock()

	e.VaultID = v.id
	e.EventID = eventid.Compute(v.id, string(e.Kind), e.Seq, e.TimestampMs)
	if v.sink != nil {
		v.sink.Emit(ctx, e)
	}
}

// persist saves the current snapshot. Persistence failures do not
// revert custody operations; they are logged and counted.
func (v *Vault) persist(ctx context.Context, nowMs int64) {
	if v.states == nil {
		return
	}

	v.mu.Lock()
	state := v.snapshotLocked(nowMs)
	v.mu.Unlock()

	if err := v.states.Save(ctx, state); err != nil {
		v.logger.Printf("persist vault state: %v", err)
		observability.RecordStateSaveError()
	}
}

func (v *Vault) snapshotLocked(nowMs int64) *domain.VaultState {
	return &domain.VaultState{
		VaultID:         v.id,
		Owner:           v.owner,
		Paused:          v.paused,
		DailyLimit:      v.quota.limit,
		SpentToday:      v.quota.spentToday,
		DayIndex:        v.quota.dayIndex,
		SupportedTokens: v.registry.List(),
		UpdatedAt:       nowMs,
	}
}

func (v *Vault) updateQuotaGauges() {
	v.mu.Lock()
	spent, limit := v.quota.spentToday, v.quota.limit
	v.mu.Unlock()
	observability.SetQuota(spent.InexactFloat64(), limit.InexactFloat64())
}
