package vault

import (
	"time"

	"github.com/shopspring/decimal"
)

const secondsPerDay = 86400

// dayIndex resolves a ledger timestamp to its day number.
func dayIndex(t time.Time) int64 {
	return t.Unix() / secondsPerDay
}

// quota is the rolling daily cap on native outflow. A zero limit
// disables enforcement.
type quota struct {
	limit      decimal.Decimal
	spentToday decimal.Decimal
	dayIndex   int64
}

func (q *quota) enabled() bool {
	return q.limit.IsPositive()
}

// rollover resets spentToday when the ledger day has advanced. Must run
// before any limit check.
func (q *quota) rollover(day int64) {
	if day != q.dayIndex {
		q.spentToday = decimal.Zero
		q.dayIndex = day
	}
}

// reserve accounts amount against today's allowance. The caller must
// undo with release if the subsequent transfer fails.
func (q *quota) reserve(amount decimal.Decimal) error {
	if !q.enabled() {
		return nil
	}
	if q.spentToday.Add(amount).GreaterThan(q.limit) {
		return ErrQuotaExceeded
	}
	q.spentToday = q.spentToday.Add(amount)
	return nil
}

// release undoes a reserve after a failed transfer.
func (q *quota) release(amount decimal.Decimal) {
	if !q.enabled() {
		return
	}
	q.spentToday = q.spentToday.Sub(amount)
	if q.spentToday.IsNegative() {
		q.spentToday = decimal.Zero
	}
}
