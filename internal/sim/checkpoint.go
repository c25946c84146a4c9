package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint tracks how far a run got through its scenario. Resuming needs
// the same input, so the digest of the scenario is kept alongside.
type Checkpoint struct {
	RunID       string `json:"run_id"`
	NextOp      uint64 `json:"next_op"`
	InputDigest string `json:"input_digest"`
	UpdatedAt   string `json:"updated_at"`
}

// Resumes reports whether the checkpoint was written for the given input.
func (cp Checkpoint) Resumes(digest string) bool { return cp.InputDigest == digest }

// CheckpointStore keeps a single checkpoint file. A disabled store loads
// nothing and drops saves.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled && path != ""}
}

func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	var cp Checkpoint
	if !c.enabled {
		return cp, false, nil
	}

	data, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cp, false, nil
	case err != nil:
		return cp, false, fmt.Errorf("read checkpoint %s: %w", c.path, err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint %s: %w", c.path, err)
	}
	return cp, true, nil
}

// Save replaces the checkpoint through a temp file so a crash never
// leaves a torn one behind.
func (c *CheckpointStore) Save(cp Checkpoint) error {
	if !c.enabled {
		return nil
	}
	cp.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*")
	if err != nil {
		return fmt.Errorf("checkpoint temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp.Name(), c.path)
}
