package position

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// CheckpointStore journals confirmed position state to disk so a restart
// resumes from the last confirmed state instead of re-issuing orders. Every
// save rewrites the full snapshot atomically.
type CheckpointStore struct {
	path string
}

// NewCheckpointStore creates the store and its parent directory.
func NewCheckpointStore(path string) (*CheckpointStore, error) {
	if path == "" {
		return nil, fmt.Errorf("position: checkpoint path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("position: create checkpoint dir: %w", err)
	}
	return &CheckpointStore{path: path}, nil
}

// Save writes the current position snapshot.
func (s *CheckpointStore) Save(positions []*Position) error {
	data, err := msgpack.Marshal(positions)
	if err != nil {
		return fmt.Errorf("position: encode checkpoint: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("position: write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("position: commit checkpoint: %w", err)
	}
	return nil
}

// Load reads the last snapshot. A missing file is an empty snapshot, not an
// error.
func (s *CheckpointStore) Load() ([]*Position, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("position: read checkpoint: %w", err)
	}
	var positions []*Position
	if err := msgpack.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("position: decode checkpoint: %w", err)
	}
	return positions, nil
}
