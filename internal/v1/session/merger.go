package session

import (
	"context"
	"errors"
	"sync"

	"github.com/parley-chat/parley/internal/v1/bus"
	"github.com/parley-chat/parley/internal/v1/types"
)

// Delivery is one unit of the merged outbound stream: an event tagged with
// the room it came from, or a lag marker when that room's subscription
// overflowed (Lagged > 0, Event is zero).
type Delivery struct {
	Room   types.RoomName
	Event  types.Event
	Lagged uint64
}

// Merger multiplexes a dynamic set of room subscriptions into one ordered
// output channel. Each subscription is drained by its own pump goroutine;
// within a room the output preserves publish order, across rooms the
// scheduler interleaves pumps fairly.
//
// A Merger is owned by exactly one session.
type Merger struct {
	out chan Delivery

	mu     sync.Mutex
	pumps  map[types.RoomName]*pump
	closed bool
}

type pump struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMerger creates a merger whose output channel holds up to buffer
// deliveries before pumps block on it.
func NewMerger(buffer int) *Merger {
	if buffer <= 0 {
		buffer = 32
	}
	return &Merger{
		out:   make(chan Delivery, buffer),
		pumps: make(map[types.RoomName]*pump),
	}
}

// Out is the merged outbound stream. It is never closed; the owning session
// stops reading it when it shuts down.
func (m *Merger) Out() <-chan Delivery {
	return m.out
}

// Add begins delivering events from the subscription under the given room
// tag. Adding a room that is already present is a programming error and is
// ignored after releasing the new subscription.
func (m *Merger) Add(room types.RoomName, sub *bus.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		sub.Close()
		return
	}
	if _, dup := m.pumps[room]; dup {
		sub.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &pump{cancel: cancel, done: make(chan struct{})}
	m.pumps[room] = p
	go m.run(ctx, p, room, sub)
}

// Remove stops delivery from the room's subscription and returns only once
// its pump has exited: after Remove returns, nothing more from that room
// can enter the output. Deliveries already queued in Out are unaffected.
// Removing an absent room is a no-op.
func (m *Merger) Remove(room types.RoomName) {
	m.mu.Lock()
	p, ok := m.pumps[room]
	if ok {
		delete(m.pumps, room)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	p.cancel()
	<-p.done
}

// Close stops every pump and marks the merger unusable. Idempotent.
func (m *Merger) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	pumps := m.pumps
	m.pumps = make(map[types.RoomName]*pump)
	m.mu.Unlock()

	for _, p := range pumps {
		p.cancel()
		<-p.done
	}
}

// run drains one subscription into the shared output until the pump is
// cancelled or the bus closes. Lag markers are forwarded inline so the
// session decides the resync policy.
func (m *Merger) run(ctx context.Context, p *pump, room types.RoomName, sub *bus.Subscription) {
	defer close(p.done)
	defer sub.Close()

	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			var lagged *bus.LaggedError
			if errors.As(err, &lagged) {
				select {
				case m.out <- Delivery{Room: room, Lagged: lagged.Skipped}:
				case <-ctx.Done():
					return
				}
				continue
			}
			// bus.ErrClosed or pump cancellation
			return
		}

		select {
		case m.out <- Delivery{Room: room, Event: ev}:
		case <-ctx.Done():
			return
		}
	}
}
