package room

import (
	"fmt"
	"log/slog"

	"github.com/parley-chat/parley/internal/v1/bus"
	"github.com/parley-chat/parley/internal/v1/metrics"
	"github.com/parley-chat/parley/internal/v1/types"
)

// Manager is the process-wide room registry. It is constructed once at boot
// from the seed definitions; the room set never changes afterwards, so
// lookups are lock-free and all serialization lives inside the rooms.
//
// The Manager is passed to every session as an explicit dependency — tests
// construct a fresh one per case.
type Manager struct {
	rooms map[types.RoomName]*Room
	order []types.RoomName // seed order, for stable listings
}

// JoinResult carries everything a successful join hands back to a session:
// the membership capability, the event subscription (positioned strictly
// before the join's own UserJoined event), and a roster snapshot taken right
// after the join; it may already reflect concurrent joins or leaves in the
// same room.
type JoinResult struct {
	Handle       *UserSessionHandle
	Subscription *bus.Subscription
	Roster       []types.UserName
}

// Status describes one room for listings and the login greeting.
type Status struct {
	Name        types.RoomName
	Description string
	Members     []types.UserName
}

// NewManager builds the registry from seed definitions. Definitions are
// assumed validated (see LoadDefinitions); an empty or duplicated name here
// is a programming error and is rejected anyway.
func NewManager(defs []Definition, busCapacity int) (*Manager, error) {
	m := &Manager{rooms: make(map[types.RoomName]*Room, len(defs))}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("room definition with empty name")
		}
		if _, dup := m.rooms[def.Name]; dup {
			return nil, fmt.Errorf("duplicate room name %q", def.Name)
		}
		m.rooms[def.Name] = newRoom(def, busCapacity)
		m.order = append(m.order, def.Name)
	}
	metrics.Rooms.Set(float64(len(m.rooms)))
	slog.Info("room registry seeded", "rooms", len(m.rooms))
	return m, nil
}

// Join serves an atomic join: on success the user is in the roster and the
// returned subscription exists from a point strictly before any event the
// caller will observe; on failure neither side effect occurred.
func (m *Manager) Join(roomName types.RoomName, user types.UserName) (*JoinResult, error) {
	r, ok := m.rooms[roomName]
	if !ok {
		return nil, types.ErrUnknownRoom
	}
	sub, handle, err := r.tryJoin(user)
	if err != nil {
		return nil, err
	}
	return &JoinResult{Handle: handle, Subscription: sub, Roster: r.snapshot()}, nil
}

// Leave consumes the handle and removes its roster entry, publishing
// exactly one UserLeft. A handle that was already released fails with
// ErrNotInRoom.
func (m *Manager) Leave(h *UserSessionHandle) error {
	if h == nil {
		return types.ErrNotInRoom
	}
	return h.release()
}

// ListRooms returns a snapshot of every room with its current members, in
// seed order.
func (m *Manager) ListRooms() []Status {
	out := make([]Status, 0, len(m.rooms))
	for _, name := range m.order {
		r := m.rooms[name]
		out = append(out, Status{
			Name:        r.name,
			Description: r.description,
			Members:     r.snapshot(),
		})
	}
	return out
}

// Close shuts every room's bus down, waking blocked subscribers. Used by
// graceful shutdown after all sessions have drained.
func (m *Manager) Close() {
	for _, r := range m.rooms {
		r.bus.Close()
	}
}
