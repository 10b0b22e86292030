package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Paths resolves the per-application locations under the local data directory.
type Paths struct {
	DataDir string
}

// ConfigFile returns the path of the optional YAML config.
func (p Paths) ConfigFile() string {
	return filepath.Join(p.DataDir, FileName)
}

// StoreFile returns the path of the key/value store file.
func (p Paths) StoreFile(name string) string {
	return filepath.Join(p.DataDir, name)
}

// BrowserProfileDir returns the Chromium user data directory.
func (p Paths) BrowserProfileDir() string {
	return filepath.Join(p.DataDir, "browser")
}

// ResolvePaths returns the paths for appName, creating the data directory on demand.
func ResolvePaths(appName string) (Paths, error) {
	base, err := LocalDataDir()
	if err != nil {
		return Paths{}, err
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create data directory: %w", err)
	}
	return Paths{DataDir: dir}, nil
}

// LocalDataDir returns the platform's per-user local data directory:
// %LOCALAPPDATA% on Windows, ~/Library/Application Support on macOS and
// $XDG_DATA_HOME (default ~/.local/share) elsewhere.
func LocalDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return dir, nil
		}
		return "", errors.New("%LOCALAPPDATA% is not defined")
	case "darwin", "ios":
		// os.UserConfigDir already returns ~/Library/Application Support here.
		return os.UserConfigDir()
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" && filepath.IsAbs(dir) {
			return dir, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share"), nil
	}
}
