package room

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/internal/v1/types"
)

// UserSessionHandle is the capability returned by Manager.Join. It proves
// current membership of one (room, user) episode and is the only way to
// publish into that room or to leave it. A handle is single-use: releasing
// it through Manager.Leave consumes it, and exactly one release wins even
// under concurrent misuse.
//
// The handle must not be copied; the roster pins its id, so a duplicated
// copy could at most fail with ErrNotInRoom, never double-leave.
type UserSessionHandle struct {
	id   uuid.UUID
	room *Room
	user types.UserName

	released atomic.Bool
}

// Room returns the name of the room this handle belongs to.
func (h *UserSessionHandle) Room() types.RoomName {
	return h.room.name
}

// User returns the user name this handle holds membership for.
func (h *UserSessionHandle) User() types.UserName {
	return h.user
}

// SendMessage publishes a chat message into the handle's room. It fails
// with ErrNotInRoom once the handle has been released.
func (h *UserSessionHandle) SendMessage(text string) error {
	if h.released.Load() {
		return types.ErrNotInRoom
	}
	return h.room.publishMessage(h, text)
}

// release consumes the handle. Only the first caller proceeds to the
// roster removal; later callers get ErrNotInRoom.
func (h *UserSessionHandle) release() error {
	if h.released.Swap(true) {
		return types.ErrNotInRoom
	}
	return h.room.leave(h)
}
