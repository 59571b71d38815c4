// Package session implements the per-connection half of the chat core: the
// ChatSession state machine that consumes inbound commands and the Merger
// that fans its room subscriptions into one outbound stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/internal/v1/metrics"
	"github.com/parley-chat/parley/internal/v1/room"
	"github.com/parley-chat/parley/internal/v1/types"
)

// Conn is the framed transport a session runs over. The TCP listener and
// the WebSocket gateway both satisfy it; the session never sees bytes.
type Conn interface {
	// ReadCommand blocks for the next inbound frame. io.EOF means the
	// client went away cleanly; any other error is a transport failure.
	ReadCommand() (types.Command, error)
	// WriteEvent writes one outbound frame, returning an error on a broken
	// connection.
	WriteEvent(types.Event) error
	Close() error
}

// State is the session lifecycle position.
type State int32

const (
	StateConnecting State = iota
	StateLoggedIn
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLoggedIn:
		return "logged_in"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Session is one client's connection-scoped state machine. It owns its
// merger, its handle table, and the wire connection; nothing in it is
// shared with other sessions except the Manager.
type Session struct {
	id      uuid.UUID
	conn    Conn
	manager *room.Manager
	merger  *Merger

	user    types.UserName
	handles map[types.RoomName]*room.UserSessionHandle // guarded by the read loop only

	state  atomic.Int32
	direct chan types.Event // session-originated events (errors), merged into the writer
}

// New creates a session bound to the shared room manager. mergerBuffer
// bounds the merged outbound queue.
func New(conn Conn, manager *room.Manager, mergerBuffer int) *Session {
	return &Session{
		id:      uuid.New(),
		conn:    conn,
		manager: manager,
		merger:  NewMerger(mergerBuffer),
		handles: make(map[types.RoomName]*room.UserSessionHandle),
		direct:  make(chan types.Event, 16),
	}
}

// ID returns the session's unique id.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Run drives the session until the client disconnects, the transport
// fails, or ctx is cancelled. On return every joined room has been left
// exactly once, every subscription released, and the wire closed.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.shutdown()

	if err := s.login(); err != nil {
		slog.Info("session login failed", "session", s.id, "error", err)
		return err
	}

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()
	slog.Info("session logged in", "session", s.id, "user", s.user)

	// The writer owns the connection's write side and closes the whole
	// connection on exit, which unblocks the read loop.
	writerDone := make(chan struct{})
	go s.writeLoop(ctx, cancel, writerDone)

	err := s.readLoop(ctx)
	s.setState(StateClosing)
	cancel()
	<-writerDone

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Info("session transport error", "session", s.id, "user", s.user, "error", err)
		return err
	}
	return nil
}

// login performs the Connecting phase: the first frame must be a valid
// username claim, answered with LoginSuccessful and the room participation
// snapshot. The writer is not running yet, so both replies go straight to
// the wire in order.
func (s *Session) login() error {
	cmd, err := s.conn.ReadCommand()
	if err != nil {
		return fmt.Errorf("reading login: %w", err)
	}
	if cmd.Type != types.CommandLogin {
		_ = s.conn.WriteEvent(types.NewError(fmt.Errorf("expected login, got %q", cmd.Type)))
		return fmt.Errorf("first frame was %q, not login", cmd.Type)
	}
	if err := cmd.Validate(); err != nil {
		_ = s.conn.WriteEvent(types.NewError(err))
		return fmt.Errorf("invalid login: %w", err)
	}

	s.user = cmd.User
	if err := s.conn.WriteEvent(types.Event{Type: types.EventLoginSuccessful, User: s.user}); err != nil {
		return fmt.Errorf("writing login reply: %w", err)
	}
	if err := s.conn.WriteEvent(s.participation()); err != nil {
		return fmt.Errorf("writing participation snapshot: %w", err)
	}

	s.setState(StateLoggedIn)
	return nil
}

// participation builds the snapshot of every room and its current members.
func (s *Session) participation() types.Event {
	statuses := s.manager.ListRooms()
	rooms := make([]types.RoomInfo, 0, len(statuses))
	for _, st := range statuses {
		rooms = append(rooms, types.RoomInfo{
			Name:        st.Name,
			Description: st.Description,
			Members:     st.Members,
		})
	}
	return types.Event{Type: types.EventRoomParticipation, Rooms: rooms}
}

// readLoop consumes commands until EOF, a transport error, an explicit
// disconnect, or cancellation.
func (s *Session) readLoop(ctx context.Context) error {
	for {
		cmd, err := s.conn.ReadCommand()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading command: %w", err)
		}
		if cmd.Type == types.CommandDisconnect {
			return nil
		}
		s.dispatch(ctx, cmd)
	}
}

// dispatch routes one command. Per-command failures are reported to the
// client as error events; they never end the session.
func (s *Session) dispatch(ctx context.Context, cmd types.Command) {
	start := time.Now()
	status := "success"
	defer func() {
		metrics.CommandProcessingDuration.WithLabelValues(string(cmd.Type)).Observe(time.Since(start).Seconds())
		metrics.Commands.WithLabelValues(string(cmd.Type), status).Inc()
	}()

	if err := cmd.Validate(); err != nil {
		status = "error"
		s.sendDirect(ctx, types.NewError(err))
		return
	}

	switch cmd.Type {
	case types.CommandJoinRoom:
		if err := s.handleJoin(cmd.Room); err != nil {
			status = "error"
			s.sendDirect(ctx, types.NewError(err))
		}
	case types.CommandLeaveRoom:
		s.handleLeave(cmd.Room)
	case types.CommandSendMessage:
		if err := s.handleSend(cmd.Room, cmd.Text); err != nil {
			status = "error"
			s.sendDirect(ctx, types.NewError(err))
		}
	default:
		// A second login, or a variant Validate let through.
		status = "error"
		s.sendDirect(ctx, types.NewError(fmt.Errorf("unexpected command %q", cmd.Type)))
	}
}

// handleJoin is idempotent per room: a join for a room already in the
// handle table is silently ignored.
func (s *Session) handleJoin(roomName types.RoomName) error {
	if _, joined := s.handles[roomName]; joined {
		return nil
	}
	res, err := s.manager.Join(roomName, s.user)
	if err != nil {
		return err
	}
	s.handles[roomName] = res.Handle
	s.merger.Add(roomName, res.Subscription)
	return nil
}

// handleLeave removes the handle and stops delivery before the leave is
// published, so this session never receives its own post-leave events.
// Leaving a room the session is not in is silently ignored.
func (s *Session) handleLeave(roomName types.RoomName) {
	h, joined := s.handles[roomName]
	if !joined {
		return
	}
	delete(s.handles, roomName)
	s.merger.Remove(roomName)
	if err := s.manager.Leave(h); err != nil {
		slog.Warn("leave after merger removal failed", "session", s.id, "room", roomName, "error", err)
	}
}

func (s *Session) handleSend(roomName types.RoomName, text string) error {
	h, joined := s.handles[roomName]
	if !joined {
		return types.ErrNotInRoom
	}
	return h.SendMessage(text)
}

// sendDirect queues a session-originated event for the writer. If the
// session is shutting down the event is dropped.
func (s *Session) sendDirect(ctx context.Context, ev types.Event) {
	select {
	case s.direct <- ev:
	case <-ctx.Done():
	}
}

// writeLoop serializes all outbound traffic: merged room events, lag
// markers (resolved silently), and direct events. A write failure cancels
// the session. Closing the connection on exit unblocks the read loop.
func (s *Session) writeLoop(ctx context.Context, cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	defer cancel()
	defer func() { _ = s.conn.Close() }()

	for {
		select {
		case ev := <-s.direct:
			if err := s.conn.WriteEvent(ev); err != nil {
				return
			}
		case d := <-s.merger.Out():
			if d.Lagged > 0 {
				// Silent resync: count the drop, tell the client nothing.
				metrics.EventsDropped.WithLabelValues(string(d.Room)).Add(float64(d.Lagged))
				slog.Debug("subscriber lagged", "session", s.id, "room", d.Room, "skipped", d.Lagged)
				continue
			}
			if err := s.conn.WriteEvent(d.Event); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// shutdown is the Closing phase: return every handle exactly once, stop the
// merger, close the wire.
func (s *Session) shutdown() {
	if State(s.state.Swap(int32(StateClosed))) == StateClosed {
		return
	}
	for roomName, h := range s.handles {
		s.merger.Remove(roomName)
		if err := s.manager.Leave(h); err != nil && !errors.Is(err, types.ErrNotInRoom) {
			slog.Warn("leave during shutdown failed", "session", s.id, "room", roomName, "error", err)
		}
		delete(s.handles, roomName)
	}
	s.merger.Close()
	_ = s.conn.Close()
	slog.Info("session closed", "session", s.id, "user", s.user)
}
