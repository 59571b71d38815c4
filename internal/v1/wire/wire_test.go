package wire

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/internal/v1/types"
)

func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return NewConn(server, time.Second), client
}

func TestReadCommand(t *testing.T) {
	c, client := pipeConn(t)

	go func() {
		_, _ = client.Write([]byte(`{"type":"join_room","room":"general"}` + "\n"))
	}()

	cmd, err := c.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, types.CommandJoinRoom, cmd.Type)
	assert.Equal(t, types.RoomName("general"), cmd.Room)
}

func TestReadCommandSkipsBlankLines(t *testing.T) {
	c, client := pipeConn(t)

	go func() {
		_, _ = client.Write([]byte("\n\n" + `{"type":"disconnect"}` + "\n"))
	}()

	cmd, err := c.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, types.CommandDisconnect, cmd.Type)
}

func TestReadCommandMalformedJSON(t *testing.T) {
	c, client := pipeConn(t)

	go func() {
		_, _ = client.Write([]byte("not json\n"))
	}()

	_, err := c.ReadCommand()
	assert.Error(t, err)
}

func TestReadCommandEOF(t *testing.T) {
	c, client := pipeConn(t)

	go func() {
		_ = client.Close()
	}()

	_, err := c.ReadCommand()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadCommandOversizedFrame(t *testing.T) {
	c, client := pipeConn(t)

	go func() {
		frame := `{"type":"send_message","room":"general","text":"` + strings.Repeat("x", MaxFrameBytes) + `"}` + "\n"
		_, _ = client.Write([]byte(frame))
	}()

	_, err := c.ReadCommand()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestWriteEvent(t *testing.T) {
	c, client := pipeConn(t)

	go func() {
		_ = c.WriteEvent(types.NewUserJoined("general", "alice"))
	}()

	line, err := bufio.NewReader(client).ReadBytes('\n')
	require.NoError(t, err)

	var ev types.Event
	require.NoError(t, json.Unmarshal(line, &ev))
	assert.Equal(t, types.EventUserJoined, ev.Type)
	assert.Equal(t, types.RoomName("general"), ev.Room)
	assert.Equal(t, types.UserName("alice"), ev.User)
}

func TestWriteEventTimesOutOnStalledPeer(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	c := NewConn(server, 50*time.Millisecond)

	// Nobody reads the client side: the deadline must fire.
	err := c.WriteEvent(types.NewMessage("general", "alice", "hello", time.Now()))
	assert.Error(t, err)
}

func TestWriteEventBrokenConnection(t *testing.T) {
	server, client := net.Pipe()
	_ = client.Close()
	c := NewConn(server, time.Second)

	err := c.WriteEvent(types.NewUserLeft("general", "alice"))
	assert.Error(t, err)
}

func TestEventEncodingOmitsEmptyFields(t *testing.T) {
	payload, err := json.Marshal(types.Event{Type: types.EventLoginSuccessful, User: "alice"})
	require.NoError(t, err)
	s := string(payload)
	assert.NotContains(t, s, "room")
	assert.NotContains(t, s, "sent_at")
	assert.NotContains(t, s, "code")
}
