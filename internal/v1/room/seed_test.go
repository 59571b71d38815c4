package room

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/internal/v1/types"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rooms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefinitions(t *testing.T) {
	path := writeSeed(t, `
rooms:
  - name: general
    description: open to everyone
  - name: random
`)

	defs, err := LoadDefinitions(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, types.RoomName("general"), defs[0].Name)
	assert.Equal(t, "open to everyone", defs[0].Description)
	assert.Equal(t, types.RoomName("random"), defs[1].Name)
	assert.Empty(t, defs[1].Description)
}

func TestLoadDefinitionsMissingFile(t *testing.T) {
	_, err := LoadDefinitions(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadDefinitionsMalformedYAML(t *testing.T) {
	path := writeSeed(t, "rooms: [::")
	_, err := LoadDefinitions(path)
	assert.Error(t, err)
}

func TestLoadDefinitionsEmptySet(t *testing.T) {
	path := writeSeed(t, "rooms: []")
	_, err := LoadDefinitions(path)
	assert.Error(t, err)
}

func TestLoadDefinitionsEmptyName(t *testing.T) {
	path := writeSeed(t, `
rooms:
  - name: general
  - description: nameless
`)
	_, err := LoadDefinitions(path)
	assert.ErrorContains(t, err, "empty name")
}

func TestLoadDefinitionsDuplicateName(t *testing.T) {
	path := writeSeed(t, `
rooms:
  - name: general
  - name: general
`)
	_, err := LoadDefinitions(path)
	assert.ErrorContains(t, err, "duplicate")
}
