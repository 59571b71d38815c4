// Package wire frames the chat protocol over a raw byte stream: one JSON
// object per newline-terminated frame, commands inbound and events
// outbound. The session layer only ever sees decoded values.
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/parley-chat/parley/internal/v1/types"
)

// MaxFrameBytes caps a single inbound frame. Oversized frames are a
// protocol error that kills the connection.
const MaxFrameBytes = 64 * 1024

// Conn frames commands and events over a net.Conn. Reads and writes may
// run concurrently with each other, but each side has a single owner.
type Conn struct {
	nc           net.Conn
	scanner      *bufio.Scanner
	writeTimeout time.Duration
}

// NewConn wraps an accepted connection. writeTimeout bounds each outbound
// frame; zero disables the deadline.
func NewConn(nc net.Conn, writeTimeout time.Duration) *Conn {
	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 4096), MaxFrameBytes)
	return &Conn{nc: nc, scanner: scanner, writeTimeout: writeTimeout}
}

// ReadCommand blocks for the next inbound frame. io.EOF reports a clean
// close; anything else is a transport or protocol failure.
func (c *Conn) ReadCommand() (types.Command, error) {
	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var cmd types.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			return types.Command{}, fmt.Errorf("decoding command frame: %w", err)
		}
		return cmd, nil
	}
	if err := c.scanner.Err(); err != nil {
		return types.Command{}, err
	}
	return types.Command{}, io.EOF
}

// WriteEvent writes one outbound frame, applying the write deadline.
func (c *Conn) WriteEvent(ev types.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event frame: %w", err)
	}
	payload = append(payload, '\n')

	if c.writeTimeout > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err = c.nc.Write(payload)
	return err
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}
