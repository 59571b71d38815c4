package room

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/set"

	"github.com/parley-chat/parley/internal/v1/types"
)

// Definition is one record of the boot seed file.
type Definition struct {
	Name        types.RoomName `yaml:"name"`
	Description string         `yaml:"description"`
}

type seedFile struct {
	Rooms []Definition `yaml:"rooms"`
}

// LoadDefinitions reads and validates the room seed file. Any violation —
// unreadable file, malformed YAML, empty set, empty or duplicate names —
// is a boot error; the process must exit non-zero before the listener
// starts.
func LoadDefinitions(path string) ([]Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rooms file %q: %w", path, err)
	}

	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing rooms file %q: %w", path, err)
	}
	if len(f.Rooms) == 0 {
		return nil, fmt.Errorf("rooms file %q defines no rooms", path)
	}

	seen := set.New[string]()
	for i, def := range f.Rooms {
		if def.Name == "" {
			return nil, fmt.Errorf("rooms file %q: entry %d has an empty name", path, i)
		}
		if seen.Has(string(def.Name)) {
			return nil, fmt.Errorf("rooms file %q: duplicate room name %q", path, def.Name)
		}
		seen.Insert(string(def.Name))
	}
	return f.Rooms, nil
}
