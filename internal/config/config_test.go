package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Gateway.BaseURL = "https://api.example.com"
	cfg.Gateway.SelfID = "u-1"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Gateway.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q, want https://api.example.com", loaded.Gateway.BaseURL)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestTimingDefaults(t *testing.T) {
	var s Sync // zero values everywhere
	if got := s.PollInterval(); got != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", got)
	}
	if got := s.ReapInterval(); got != 10*time.Second {
		t.Errorf("ReapInterval = %v, want 10s", got)
	}
	if got := s.PendingMaxAge(); got != 30*time.Second {
		t.Errorf("PendingMaxAge = %v, want 30s", got)
	}
	if got := s.TypingTimeout(); got != 2*time.Second {
		t.Errorf("TypingTimeout = %v, want 2s", got)
	}
}

func TestTimingOverrides(t *testing.T) {
	s := Sync{PollIntervalSecs: 3, ReapIntervalSecs: 20, PendingMaxAgeSecs: 60, TypingTimeoutMS: 500}
	if got := s.PollInterval(); got != 3*time.Second {
		t.Errorf("PollInterval = %v, want 3s", got)
	}
	if got := s.ReapInterval(); got != 20*time.Second {
		t.Errorf("ReapInterval = %v, want 20s", got)
	}
	if got := s.PendingMaxAge(); got != time.Minute {
		t.Errorf("PendingMaxAge = %v, want 1m", got)
	}
	if got := s.TypingTimeout(); got != 500*time.Millisecond {
		t.Errorf("TypingTimeout = %v, want 500ms", got)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
