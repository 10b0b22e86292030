// Package startup registers the shell to run at OS login.
//
// Registration is idempotent: the existing record is read first and only
// rewritten when it differs, so calling EnsureRegistered repeatedly causes no
// disk or registry churn.
package startup

import (
	"strings"
)

// MarkerFlag is appended to the registered command line so the process can
// tell it was launched by the login mechanism.
const MarkerFlag = "--startup"

// Registrar ensures the run-at-login record exists with the given content.
type Registrar interface {
	// EnsureRegistered creates or repairs the record so that it launches
	// exePath with markerFlag. A record that already matches is left untouched.
	EnsureRegistered(exePath, markerFlag string) error
	// Location describes where the record lives, for logs.
	Location() string
}

// FileBacked is implemented by registrars whose record is a single file,
// which can be watched for external removal.
type FileBacked interface {
	Path() string
}

// CommandLine renders the registered command: the executable path followed
// by the marker flag. Paths containing whitespace are double-quoted.
func CommandLine(exePath, markerFlag string) string {
	if strings.ContainsAny(exePath, " \t") {
		exePath = `"` + exePath + `"`
	}
	if markerFlag == "" {
		return exePath
	}
	return exePath + " " + markerFlag
}

// sanitizeName maps a registration name to a safe file stem.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	s := strings.Trim(b.String(), ".-")
	if s == "" {
		return "webshell"
	}
	return s
}
