package vault

import "sync/atomic"

// guard is the reentrancy exclusion lock around operations that invoke
// an external transfer primitive. It never blocks: entering while held
// is an error, and release happens on every exit path.
type guard struct {
	locked atomic.Bool
}

// enter acquires the guard. Returns ErrReentrantCall if already held.
func (g *guard) enter() error {
	if !g.locked.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// exit releases the guard unconditionally.
func (g *guard) exit() {
	g.locked.Store(false)
}
