//go:build !windows && !darwin

package startup

import (
	"fmt"
	"os"
	"path/filepath"
)

// New returns the XDG autostart registrar for name:
// $XDG_CONFIG_HOME/autostart/<name>.desktop.
func New(name string) (Registrar, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config directory: %w", err)
	}
	path := filepath.Join(dir, "autostart", sanitizeName(name)+".desktop")
	return NewDesktopEntryRegistrar(path, name), nil
}
