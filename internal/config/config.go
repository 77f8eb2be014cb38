package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.quill/config.toml.
type Config struct {
	DefaultProfile string  `toml:"default_profile"`
	Gateway        Gateway `toml:"gateway"`
	Sync           Sync    `toml:"sync"`
}

// Gateway holds the backend endpoints and identity.
type Gateway struct {
	BaseURL string `toml:"base_url"`
	WSURL   string `toml:"ws_url"`
	SelfID  string `toml:"self_id"`
	Token   string `toml:"token"`
}

// Sync holds the reconciliation timing knobs.
type Sync struct {
	PollIntervalSecs  int `toml:"poll_interval_secs"`
	ReapIntervalSecs  int `toml:"reap_interval_secs"`
	PendingMaxAgeSecs int `toml:"pending_max_age_secs"`
	TypingTimeoutMS   int `toml:"typing_timeout_ms"`
}

// Default returns a config with the recommended timing defaults.
func Default() *Config {
	return &Config{
		Sync: Sync{
			PollIntervalSecs:  5,
			ReapIntervalSecs:  10,
			PendingMaxAgeSecs: 30,
			TypingTimeoutMS:   2000,
		},
	}
}

// PollInterval returns the poll fallback interval.
func (s Sync) PollInterval() time.Duration {
	return secsOr(s.PollIntervalSecs, 5)
}

// ReapInterval returns the stale-pending sweep interval.
func (s Sync) ReapInterval() time.Duration {
	return secsOr(s.ReapIntervalSecs, 10)
}

// PendingMaxAge returns how long a pending message may wait for its
// confirmation before the reaper removes it.
func (s Sync) PendingMaxAge() time.Duration {
	return secsOr(s.PendingMaxAgeSecs, 30)
}

// TypingTimeout returns the typing auto-clear window.
func (s Sync) TypingTimeout() time.Duration {
	if s.TypingTimeoutMS <= 0 {
		return 2000 * time.Millisecond
	}
	return time.Duration(s.TypingTimeoutMS) * time.Millisecond
}

func secsOr(secs, fallback int) time.Duration {
	if secs <= 0 {
		secs = fallback
	}
	return time.Duration(secs) * time.Second
}

// Load reads config from the given path. Returns an error if the file is
// missing; callers fall back to Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
