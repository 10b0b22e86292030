// Package store implements the persisted key/value mapping that backs the
// shell's cookie-like session state.
//
// A Store is owned by a single goroutine (the control loop) and is not safe
// for concurrent use. The file on disk is a passive mirror: it is read once by
// Load and rewritten in full on every committed mutation.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"webshell/internal/logging"
)

// legacyKey is the wrapper object written by earlier builds:
// {"cookies": {"name": "value"}}.
const legacyKey = "cookies"

// Store is an in-memory string mapping mirrored to a JSON file.
type Store struct {
	path    string
	entries map[string]string
}

// New returns an empty store that will persist to path.
func New(path string) *Store {
	return &Store{path: path, entries: make(map[string]string)}
}

// Load reads the store at path. A missing, unreadable or malformed file
// yields an empty store; Load never fails.
func Load(path string) *Store {
	s := New(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Get(logging.CategoryStore).Warn("read %s: %v (starting empty)", path, err)
		}
		return s
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logging.Get(logging.CategoryStore).Warn("parse %s: %v (starting empty)", path, err)
		return s
	}

	for k, v := range raw {
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			s.entries[k] = str
			continue
		}
		if k == legacyKey {
			var nested map[string]string
			if err := json.Unmarshal(v, &nested); err == nil {
				for nk, nv := range nested {
					if _, exists := s.entries[nk]; !exists {
						s.entries[nk] = nv
					}
				}
			}
		}
		// Anything else is opaque and ignored.
	}

	logging.Get(logging.CategoryStore).Debug("loaded %d entries from %s", len(s.entries), path)
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Insert adds or overwrites key. It does not persist.
func (s *Store) Insert(key, value string) {
	s.entries[key] = value
}

// Get returns the value for key.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.entries[key]
	return v, ok
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the mapping.
func (s *Store) Entries() map[string]string {
	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// MergeFromHeader inserts every "name=value" segment of a Cookie-style
// header and persists once. Segments without '=' or with an empty name or
// value are skipped; only the first '=' splits, so values may contain '='.
func (s *Store) MergeFromHeader(header string) error {
	for _, segment := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(segment), "=")
		if !ok || name == "" || value == "" {
			continue
		}
		s.Insert(name, value)
	}
	return s.Save()
}

// SerializeHeader renders the mapping as "k=v; k2=v2". Order is unspecified.
func (s *Store) SerializeHeader() string {
	parts := make([]string, 0, len(s.entries))
	for k, v := range s.entries {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "; ")
}

// Save writes the full mapping to disk. The file is replaced by rename so a
// crash leaves either the old or the new content, never a truncated file.
func (s *Store) Save() error {
	if s.path == "" {
		return fmt.Errorf("store has no backing file")
	}

	// encoding/json sorts map keys, so unchanged stores produce identical files.
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace store: %w", err)
	}

	logging.Get(logging.CategoryStore).Debug("saved %d entries to %s", len(s.entries), s.path)
	return nil
}
