package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-chat/parley/internal/v1/session"
	"github.com/parley-chat/parley/internal/v1/types"
)

// wsWire adapts a WebSocket connection to the session's wire contract: one
// text message per frame, the same JSON shapes the TCP framing uses.
type wsWire struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// NewWSConn wraps an upgraded WebSocket connection for use as a session
// transport.
func NewWSConn(conn *websocket.Conn, writeTimeout time.Duration) session.Conn {
	return &wsWire{conn: conn, writeTimeout: writeTimeout}
}

func (w *wsWire) ReadCommand() (types.Command, error) {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return types.Command{}, io.EOF
			}
			return types.Command{}, err
		}
		if messageType != websocket.TextMessage || len(data) == 0 {
			continue
		}
		var cmd types.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			return types.Command{}, fmt.Errorf("decoding command frame: %w", err)
		}
		return cmd, nil
	}
}

func (w *wsWire) WriteEvent(ev types.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event frame: %w", err)
	}
	if w.writeTimeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

func (w *wsWire) Close() error {
	return w.conn.Close()
}
