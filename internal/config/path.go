package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// AppName names the per-user data directory.
const AppName = "feedgen"

// DefaultDataDir returns the default data directory based on the host OS:
// $XDG_DATA_HOME/feedgen on Linux, ~/Library/Application Support/feedgen on
// macOS and %LOCALAPPDATA%\feedgen on Windows.
func DefaultDataDir() string {
	if xdg.DataHome == "" {
		return filepath.Join(".", "data")
	}
	return filepath.Join(xdg.DataHome, AppName)
}

// FeedDir is the pebble directory of one feed's store.
func FeedDir(dataDir, feed string) string {
	return filepath.Join(dataDir, "feeds", feed)
}

// CheckpointDir is the pebble directory of the checkpoint store.
func CheckpointDir(dataDir string) string {
	return filepath.Join(dataDir, "checkpoint")
}
