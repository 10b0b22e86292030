//go:build windows

package startup

import (
	"errors"
	"fmt"

	"webshell/internal/logging"

	"golang.org/x/sys/windows/registry"
)

const runKeyPath = `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`

// RegistryRegistrar keeps the record as a named string value under the
// current user's Run key.
type RegistryRegistrar struct {
	name string
}

// New returns the registry registrar for name.
func New(name string) (Registrar, error) {
	if name == "" {
		return nil, errors.New("registration name is empty")
	}
	return &RegistryRegistrar{name: name}, nil
}

// Location implements Registrar.
func (r *RegistryRegistrar) Location() string {
	return `HKCU\` + runKeyPath + `\` + r.name
}

// EnsureRegistered implements Registrar.
func (r *RegistryRegistrar) EnsureRegistered(exePath, markerFlag string) error {
	if exePath == "" {
		return errors.New("executable path is empty")
	}
	want := CommandLine(exePath, markerFlag)

	key, _, err := registry.CreateKey(registry.CURRENT_USER, runKeyPath, registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open run key: %w", err)
	}
	defer key.Close()

	have, _, err := key.GetStringValue(r.name)
	switch {
	case err == nil && have == want:
		return nil
	case err != nil && !errors.Is(err, registry.ErrNotExist) && !errors.Is(err, registry.ErrUnexpectedType):
		return fmt.Errorf("read run value %s: %w", r.name, err)
	}

	if err := key.SetStringValue(r.name, want); err != nil {
		return fmt.Errorf("write run value %s: %w", r.name, err)
	}
	logging.Get(logging.CategoryStartup).Info("registered run-at-login value %s", r.Location())
	return nil
}
