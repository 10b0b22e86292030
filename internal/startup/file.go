package startup

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"webshell/internal/logging"
)

// FileRegistrar keeps a login record in a single file, rendered from the
// executable path and marker flag.
type FileRegistrar struct {
	path   string
	render func(exePath, markerFlag string) []byte
}

// NewDesktopEntryRegistrar returns a registrar that writes an XDG autostart
// desktop entry named name to path.
func NewDesktopEntryRegistrar(path, name string) *FileRegistrar {
	return &FileRegistrar{
		path: path,
		render: func(exePath, markerFlag string) []byte {
			return renderDesktopEntry(name, exePath, markerFlag)
		},
	}
}

// NewLaunchAgentRegistrar returns a registrar that writes a launchd agent
// property list with the given label to path.
func NewLaunchAgentRegistrar(path, label string) *FileRegistrar {
	return &FileRegistrar{
		path: path,
		render: func(exePath, markerFlag string) []byte {
			return renderLaunchAgent(label, exePath, markerFlag)
		},
	}
}

// Path returns the record file.
func (f *FileRegistrar) Path() string {
	return f.path
}

// Location implements Registrar.
func (f *FileRegistrar) Location() string {
	return f.path
}

// EnsureRegistered implements Registrar.
func (f *FileRegistrar) EnsureRegistered(exePath, markerFlag string) error {
	if exePath == "" {
		return fmt.Errorf("executable path is empty")
	}
	want := f.render(exePath, markerFlag)

	have, err := os.ReadFile(f.path)
	switch {
	case err == nil && bytes.Equal(have, want):
		return nil
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("read %s: %w", f.path, err)
	}

	if err := writeFileAtomic(f.path, want, 0o644); err != nil {
		return err
	}
	logging.Get(logging.CategoryStartup).Info("registered run-at-login entry %s", f.path)
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(name, perm); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// renderDesktopEntry follows the freedesktop Desktop Entry and Autostart
// specifications.
func renderDesktopEntry(name, exePath, markerFlag string) []byte {
	exec := quoteExecArg(exePath)
	if markerFlag != "" {
		exec += " " + quoteExecArg(markerFlag)
	}
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", escapeDesktopValue(name))
	fmt.Fprintf(&b, "Exec=%s\n", escapeDesktopValue(exec))
	b.WriteString("NoDisplay=true\n")
	b.WriteString("Terminal=false\n")
	b.WriteString("X-GNOME-Autostart-enabled=true\n")
	return []byte(b.String())
}

// quoteExecArg quotes an Exec argument when it contains reserved characters.
func quoteExecArg(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\n\"'\\><~|&;$*?#()`") {
		return arg
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(arg) + `"`
}

// escapeDesktopValue applies the string-value escapes of the desktop file format.
func escapeDesktopValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	return r.Replace(v)
}

func renderLaunchAgent(label, exePath, markerFlag string) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n")
	b.WriteString(`<plist version="1.0">` + "\n<dict>\n")
	b.WriteString("\t<key>Label</key>\n\t<string>")
	_ = xml.EscapeText(&b, []byte(label))
	b.WriteString("</string>\n\t<key>ProgramArguments</key>\n\t<array>\n")
	args := []string{exePath}
	if markerFlag != "" {
		args = append(args, markerFlag)
	}
	for _, a := range args {
		b.WriteString("\t\t<string>")
		_ = xml.EscapeText(&b, []byte(a))
		b.WriteString("</string>\n")
	}
	b.WriteString("\t</array>\n\t<key>RunAtLoad</key>\n\t<true/>\n</dict>\n</plist>\n")
	return b.Bytes()
}
