// internal/bus/bus.go
package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// SyncType is the only message type receivers act on; anything else is a
// forward-compatible no-op.
const SyncType = "rooms-sync"

// Message is the envelope carried on the sync medium. Origin identifies the
// publishing store instance so a receiver can drop its own messages; a
// received message is never re-published.
type Message struct {
	Type    string          `json:"type"`
	Origin  uuid.UUID       `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Bus fans each published message out to every subscriber on the same
// medium. Delivery is asynchronous, at-least-once, and order-preserving per
// publisher; there is no ordering guarantee across publishers. A publisher
// never blocks on its subscribers, so two instances committing at the same
// moment cannot wedge each other.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	// Subscribe registers fn for every message on the medium, including the
	// caller's own publishes. The returned func cancels the subscription.
	Subscribe(fn func(Message)) (cancel func())
}

// MemoryBus delivers messages to subscribers in the same process from a
// single dispatch goroutine. Store instances sharing a MemoryBus behave like
// separate tabs on one machine, which also makes it the natural bus for
// tests.
type MemoryBus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	subs   map[int64]func(Message)
	nextID int64
	queue  []Message
	closed bool
}

// NewMemoryBus returns an in-process bus and starts its dispatcher.
func NewMemoryBus() *MemoryBus {
	b := &MemoryBus{subs: make(map[int64]func(Message))}
	b.cond = sync.NewCond(&b.mu)
	go b.dispatch()
	return b
}

// Publish enqueues msg for delivery and returns immediately.
func (b *MemoryBus) Publish(_ context.Context, msg Message) error {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	b.cond.Signal()
	return nil
}

// Subscribe registers fn and returns its cancel func.
func (b *MemoryBus) Subscribe(fn func(Message)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Close stops the dispatcher once the queue drains. Publishing after Close
// is a silent no-op.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Signal()
}

// dispatch drains the queue in publish order. Handlers run off the
// publisher's goroutine: a subscriber holding its own locks can never
// deadlock against a publisher holding theirs.
func (b *MemoryBus) dispatch() {
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 && b.closed {
			b.mu.Unlock()
			return
		}
		msg := b.queue[0]
		b.queue = b.queue[1:]
		fns := make([]func(Message), 0, len(b.subs))
		for _, fn := range b.subs {
			fns = append(fns, fn)
		}
		b.mu.Unlock()

		for _, fn := range fns {
			fn(msg)
		}
	}
}
