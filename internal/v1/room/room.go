// Package room implements the chat room registry: the rooms themselves,
// the process-wide Manager that serves joins and leaves, the single-use
// membership handles it hands out, and the boot-time seed loading.
//
// Concurrency Design:
// Each Room guards its roster and join counter with its own mutex, so
// join/leave on the same room are serialized while different rooms proceed
// in parallel. The Manager's room set is immutable after construction and
// needs no lock of its own. Event fan-out is delegated to the room's bus,
// which never blocks a publisher.
package room

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/internal/v1/bus"
	"github.com/parley-chat/parley/internal/v1/metrics"
	"github.com/parley-chat/parley/internal/v1/types"
)

// Room is a named chat room. It owns one broadcast bus and the roster of
// currently joined users. Rooms are created once at boot and live for the
// entire process; all mutation goes through the Manager.
type Room struct {
	name        types.RoomName
	description string

	mu     sync.Mutex
	bus    *bus.Bus
	roster map[types.UserName]uuid.UUID // member -> id of the live handle
	joins  uint64                       // monotonic join counter
}

func newRoom(def Definition, capacity int) *Room {
	return &Room{
		name:        def.Name,
		description: def.Description,
		bus:         bus.New(capacity),
		roster:      make(map[types.UserName]uuid.UUID),
	}
}

// Name returns the room's name.
func (r *Room) Name() types.RoomName {
	return r.name
}

// Description returns the seed file's human description, possibly empty.
func (r *Room) Description() string {
	return r.description
}

// tryJoin inserts the user into the roster, subscribes at the current bus
// head, and publishes UserJoined — all under the room lock, so the new
// subscription observes its own join event and everything after it, and no
// concurrent join can interleave.
func (r *Room) tryJoin(user types.UserName) (*bus.Subscription, *UserSessionHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.roster[user]; taken {
		return nil, nil, types.ErrUserNameTaken
	}

	id := uuid.New()
	r.roster[user] = id
	r.joins++

	sub := r.bus.Subscribe()
	r.bus.Publish(types.NewUserJoined(r.name, user))

	metrics.RoomMembers.WithLabelValues(string(r.name)).Set(float64(len(r.roster)))
	slog.Info("user joined room", "room", r.name, "user", user, "members", len(r.roster))

	return sub, &UserSessionHandle{id: id, room: r, user: user}, nil
}

// leave removes the handle's roster entry and publishes UserLeft. The
// handle id must match the live roster entry; a stale handle fails with
// ErrNotInRoom and publishes nothing.
func (r *Room) leave(h *UserSessionHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.roster[h.user]
	if !ok || id != h.id {
		return types.ErrNotInRoom
	}

	delete(r.roster, h.user)
	r.bus.Publish(types.NewUserLeft(r.name, h.user))

	metrics.RoomMembers.WithLabelValues(string(r.name)).Set(float64(len(r.roster)))
	slog.Info("user left room", "room", r.name, "user", h.user, "members", len(r.roster))

	return nil
}

// publishMessage validates that the handle still names a current member and
// publishes the message stamped with the current time.
func (r *Room) publishMessage(h *UserSessionHandle, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.roster[h.user]
	if !ok || id != h.id {
		return types.ErrNotInRoom
	}

	r.bus.Publish(types.NewMessage(r.name, h.user, text, time.Now()))
	metrics.MessagesPublished.WithLabelValues(string(r.name)).Inc()
	return nil
}

// snapshot returns the roster as a sorted slice. Callers receive a copy and
// never hold a reference into the live roster.
func (r *Room) snapshot() []types.UserName {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := make([]types.UserName, 0, len(r.roster))
	for user := range r.roster {
		members = append(members, user)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

// JoinCount returns the monotonic number of joins this room has served.
func (r *Room) JoinCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joins
}
