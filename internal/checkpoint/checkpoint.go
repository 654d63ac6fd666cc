// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Stats holds the run-level counters persisted alongside pipeline progress.
type Stats struct {
	TotalFiles int `json:"total_files"`
	Processed  int `json:"processed"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

// Checkpoint marks how far a build run got over the fixed node ordering.
// LastIdx is the index of the last row already persisted to the dataset;
// a resumed run continues at LastIdx+1.
type Checkpoint struct {
	LastIdx   int       `json:"last_idx"`
	Timestamp time.Time `json:"timestamp"`
	Stats     Stats     `json:"stats"`
}

// Manager persists and restores build progress for crash-safe resumption.
// The checkpoint file is a single-writer resource; concurrent runs against
// the same path are not supported.
type Manager struct {
	path string
}

// NewManager returns a Manager persisting to the given path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load reads the checkpoint file. Returns (nil, nil) when no checkpoint
// exists, which means the previous run completed cleanly or never ran.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	return &cp, nil
}

// Save writes the current progress. The write goes through a temp file and
// rename so an interrupted save never leaves a truncated checkpoint behind.
func (m *Manager) Save(lastIdx int, stats Stats) error {
	cp := Checkpoint{
		LastIdx:   lastIdx,
		Timestamp: time.Now().UTC(),
		Stats:     stats,
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoint file, signaling clean completion. Clearing an
// absent checkpoint is not an error.
func (m *Manager) Clear() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}
