package types

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{"valid login", Command{Type: CommandLogin, User: "alice"}, false},
		{"login without user", Command{Type: CommandLogin}, true},
		{"login name too long", Command{Type: CommandLogin, User: UserName(strings.Repeat("a", MaxUserNameLength+1))}, true},
		{"valid join", Command{Type: CommandJoinRoom, Room: "general"}, false},
		{"join without room", Command{Type: CommandJoinRoom}, true},
		{"valid leave", Command{Type: CommandLeaveRoom, Room: "general"}, false},
		{"leave without room", Command{Type: CommandLeaveRoom}, true},
		{"valid send", Command{Type: CommandSendMessage, Room: "general", Text: "hi"}, false},
		{"send without room", Command{Type: CommandSendMessage, Text: "hi"}, true},
		{"send empty text", Command{Type: CommandSendMessage, Room: "general"}, true},
		{"send text too long", Command{Type: CommandSendMessage, Room: "general", Text: strings.Repeat("x", MaxMessageLength+1)}, true},
		{"send text at limit", Command{Type: CommandSendMessage, Room: "general", Text: strings.Repeat("x", MaxMessageLength)}, false},
		{"disconnect", Command{Type: CommandDisconnect}, false},
		{"unknown type", Command{Type: "dance"}, true},
		{"empty type", Command{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCodeForError(t *testing.T) {
	assert.Equal(t, ErrorCodeUnknownRoom, CodeForError(ErrUnknownRoom))
	assert.Equal(t, ErrorCodeUserNameTaken, CodeForError(ErrUserNameTaken))
	assert.Equal(t, ErrorCodeNotInRoom, CodeForError(ErrNotInRoom))
	assert.Equal(t, ErrorCodeInvalidCommand, CodeForError(errors.New("anything else")))
}

func TestEventConstructors(t *testing.T) {
	joined := NewUserJoined("general", "alice")
	assert.Equal(t, EventUserJoined, joined.Type)
	assert.Equal(t, RoomName("general"), joined.Room)
	assert.Equal(t, UserName("alice"), joined.User)

	left := NewUserLeft("general", "alice")
	assert.Equal(t, EventUserLeft, left.Type)

	now := time.Now()
	msg := NewMessage("general", "alice", "hi", now)
	assert.Equal(t, EventMessage, msg.Type)
	assert.Equal(t, UserName("alice"), msg.From)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, now, msg.SentAt)

	errEv := NewError(ErrNotInRoom)
	assert.Equal(t, EventError, errEv.Type)
	assert.Equal(t, ErrorCodeNotInRoom, errEv.Code)
	assert.NotEmpty(t, errEv.Reason)
}
