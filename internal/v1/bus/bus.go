// Package bus implements the bounded broadcast primitive backing a single
// room: multi-producer, multi-consumer, with one shared ring and an
// independent read cursor per subscriber.
//
// Contract:
//   - Publish never blocks and never fails because of a slow subscriber.
//   - A new subscription starts at the current head; there is no backfill.
//   - A subscriber whose cursor falls behind the head by the ring capacity
//     or more is lagged: its cursor fast-forwards to the head and its next
//     read reports how many events it missed. Other subscribers are
//     unaffected.
//   - Non-lagged subscribers observe events in publish order.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/parley-chat/parley/internal/v1/types"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 128

// ErrClosed is returned by Subscription.Next once the bus has been closed
// and the subscriber has drained everything it is entitled to.
var ErrClosed = errors.New("bus: closed")

// LaggedError reports a buffer overflow for one subscriber. The
// subscription remains usable; the next read resumes at the bus head.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("bus: subscriber lagged, skipped %d events", e.Skipped)
}

// Bus is a bounded broadcast channel for one room's events.
type Bus struct {
	mu     sync.Mutex
	buf    []types.Event
	head   uint64 // sequence number of the next publish
	closed bool
	notify chan struct{} // closed and replaced on every publish
}

// New creates a bus with the given ring capacity. Non-positive capacities
// fall back to DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		buf:    make([]types.Event, capacity),
		notify: make(chan struct{}),
	}
}

// Capacity returns the ring size.
func (b *Bus) Capacity() int {
	return len(b.buf)
}

// Publish appends an event at the head. It completes immediately regardless
// of subscriber state and is a no-op on a closed bus.
func (b *Bus) Publish(ev types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.buf[b.head%uint64(len(b.buf))] = ev
	b.head++
	close(b.notify)
	b.notify = make(chan struct{})
}

// Subscribe registers a subscriber starting at the current head.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Subscription{bus: b, pos: b.head}
}

// Close marks the bus closed and wakes every blocked subscriber. Pending
// events already in the ring remain readable; subsequent reads return
// ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

// Subscription is one subscriber's cursor into the ring. It is owned by a
// single reader and must not be used concurrently.
type Subscription struct {
	bus    *Bus
	pos    uint64
	closed bool
}

// Next returns the next event in publish order. It blocks until an event is
// available, the context is done, or the bus closes. A *LaggedError is
// returned when the cursor overflowed; the subscription stays usable and
// resumes at the head.
func (s *Subscription) Next(ctx context.Context) (types.Event, error) {
	for {
		s.bus.mu.Lock()
		if s.closed {
			s.bus.mu.Unlock()
			return types.Event{}, ErrClosed
		}
		if lag := s.bus.head - s.pos; lag > 0 {
			if lag >= uint64(len(s.bus.buf)) {
				s.pos = s.bus.head
				s.bus.mu.Unlock()
				return types.Event{}, &LaggedError{Skipped: lag}
			}
			ev := s.bus.buf[s.pos%uint64(len(s.bus.buf))]
			s.pos++
			s.bus.mu.Unlock()
			return ev, nil
		}
		if s.bus.closed {
			s.bus.mu.Unlock()
			return types.Event{}, ErrClosed
		}
		wake := s.bus.notify
		s.bus.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return types.Event{}, ctx.Err()
		}
	}
}

// Close releases the subscription. It is idempotent; reads after Close
// return ErrClosed.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.closed = true
}
