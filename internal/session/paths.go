// Package session resolves per-profile directories, names, and paths under
// ~/.quill. A profile isolates one account's cache, logs, and lock.
package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.quill.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".quill")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// LockPath returns the lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// CacheDBPath returns the local sqlite cache path for a profile.
func CacheDBPath(name string) string {
	return filepath.Join(Dir(name), "cache.db")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path for a profile.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "quilld.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
