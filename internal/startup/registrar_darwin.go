//go:build darwin

package startup

import (
	"fmt"
	"os"
	"path/filepath"
)

// New returns the launchd registrar for name:
// ~/Library/LaunchAgents/<label>.plist.
func New(name string) (Registrar, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	label := "com.webshell." + sanitizeName(name)
	path := filepath.Join(home, "Library", "LaunchAgents", label+".plist")
	return NewLaunchAgentRegistrar(path, label), nil
}
