package view

import "sync"

// Gate blocks a destructive action behind an explicit confirm/cancel step.
// At most one confirmation is pending at a time.
type Gate struct {
	mu      sync.Mutex
	message string
	confirm func()
	cancel  func()
	pending bool
}

// Request surfaces a confirmation. It reports false when another
// confirmation is already pending.
func (g *Gate) Request(message string, onConfirm, onCancel func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending {
		return false
	}
	g.message = message
	g.confirm = onConfirm
	g.cancel = onCancel
	g.pending = true
	return true
}

// Pending returns the prompt of the pending confirmation, if any.
func (g *Gate) Pending() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.message, g.pending
}

// Confirm clears the pending confirmation, then runs its confirm callback.
// Clearing first guarantees the callback never observes a stale pending
// state and the gate can immediately accept a new request.
func (g *Gate) Confirm() bool {
	return g.resolve(true)
}

// Cancel clears the pending confirmation, then runs its cancel callback.
func (g *Gate) Cancel() bool {
	return g.resolve(false)
}

func (g *Gate) resolve(confirmed bool) bool {
	g.mu.Lock()
	if !g.pending {
		g.mu.Unlock()
		return false
	}
	fn := g.cancel
	if confirmed {
		fn = g.confirm
	}
	g.message = ""
	g.confirm = nil
	g.cancel = nil
	g.pending = false
	g.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}
