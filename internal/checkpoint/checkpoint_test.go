// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Absent(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), ".checkpoint.json"))

	cp, err := m.Load()
	if err != nil {
		t.Fatalf("Load() on absent file: %v", err)
	}
	if cp != nil {
		t.Errorf("Load() on absent file = %+v, want nil", cp)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".checkpoint.json")
	m := NewManager(path)

	stats := Stats{TotalFiles: 1000, Processed: 480, Skipped: 15, Errors: 5}
	if err := m.Save(499, stats); err != nil {
		t.Fatalf("Save(): %v", err)
	}

	cp, err := m.Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if cp == nil {
		t.Fatal("Load() returned nil after Save")
	}
	if cp.LastIdx != 499 {
		t.Errorf("LastIdx = %d, want 499", cp.LastIdx)
	}
	if cp.Stats != stats {
		t.Errorf("Stats = %+v, want %+v", cp.Stats, stats)
	}
	if cp.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestSave_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".checkpoint.json")
	m := NewManager(path)

	if err := m.Save(10, Stats{Processed: 10}); err != nil {
		t.Fatalf("first Save(): %v", err)
	}
	if err := m.Save(20, Stats{Processed: 20}); err != nil {
		t.Fatalf("second Save(): %v", err)
	}

	cp, err := m.Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if cp.LastIdx != 20 || cp.Stats.Processed != 20 {
		t.Errorf("expected latest save to win, got %+v", cp)
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".checkpoint.json")
	m := NewManager(path)

	if err := m.Save(1, Stats{}); err != nil {
		t.Fatalf("Save(): %v", err)
	}
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear(): %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("checkpoint file should be gone after Clear")
	}

	// Clearing twice is fine.
	if err := m.Clear(); err != nil {
		t.Errorf("Clear() on absent file: %v", err)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".checkpoint.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	if _, err := m.Load(); err == nil {
		t.Error("Load() on corrupt checkpoint should fail")
	}
}
