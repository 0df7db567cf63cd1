package out

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"readsync/internal/modules/sync/domain"
	syncout "readsync/internal/modules/sync/port/out"
)

const stateFileName = "state.json"

// DirLink is the shared-folder transport: each envelope becomes one JSON file
// in the drop directory and the full-state document overwrites state.json.
// The peer picks them up with its ingest command.
type DirLink struct {
	dir string
}

var _ syncout.Link = (*DirLink)(nil)

func NewDirLink(dir string) (*DirLink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transfer directory: %w", err)
	}
	return &DirLink{dir: dir}, nil
}

func (l *DirLink) Send(ctx context.Context, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode transfer: %w", err)
	}
	return writeAtomic(filepath.Join(l.dir, "transfer-"+env.ID+".json"), data)
}

func (l *DirLink) PublishState(ctx context.Context, state domain.FullState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode full state: %w", err)
	}
	return writeAtomic(filepath.Join(l.dir, stateFileName), data)
}

// ReadInbox loads and deletes pending transfer files, oldest first, returning
// the envelopes plus the full-state document if one is present.
func ReadInbox(dir string) ([]domain.Envelope, *domain.FullState, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("read transfer directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var envelopes []domain.Envelope
	var state *domain.FullState
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return envelopes, state, err
		}
		switch {
		case name == stateFileName:
			var s domain.FullState
			if err := json.Unmarshal(data, &s); err != nil {
				return envelopes, state, fmt.Errorf("decode %s: %w", name, err)
			}
			state = &s
		case strings.HasPrefix(name, "transfer-") && strings.HasSuffix(name, ".json"):
			var env domain.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				return envelopes, state, fmt.Errorf("decode %s: %w", name, err)
			}
			envelopes = append(envelopes, env)
		default:
			continue
		}
		if err := os.Remove(path); err != nil {
			return envelopes, state, err
		}
	}
	return envelopes, state, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
