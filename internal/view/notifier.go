package view

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Kind distinguishes success from error notifications.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Message is one transient notification.
type Message struct {
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier holds at most one live message. A new message replaces the
// current one immediately and restarts the expiry delay; the superseded
// message's timer never clears its successor.
type Notifier struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	ttl     time.Duration
	current *Message
	gen     uint64
}

// NewNotifier creates a notifier expiring messages after ttl.
func NewNotifier(clock clockwork.Clock, ttl time.Duration) *Notifier {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Notifier{clock: clock, ttl: ttl}
}

// Notify replaces the live message and schedules its expiry.
func (n *Notifier) Notify(kind Kind, text string) {
	n.mu.Lock()
	n.gen++
	gen := n.gen
	n.current = &Message{Kind: kind, Text: text, CreatedAt: n.clock.Now()}
	n.mu.Unlock()

	n.clock.AfterFunc(n.ttl, func() {
		n.mu.Lock()
		// Only the newest message's timer may clear the slot.
		if n.gen == gen {
			n.current = nil
		}
		n.mu.Unlock()
	})
}

// Success posts a success message.
func (n *Notifier) Success(text string) { n.Notify(KindSuccess, text) }

// Error posts an error message.
func (n *Notifier) Error(text string) { n.Notify(KindError, text) }

// Current returns the live message, or nil once expired.
func (n *Notifier) Current() *Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}
