//go:build darwin

package notify

import (
	"fmt"
	"os/exec"
	"strings"
)

// OSAScript shows notifications through AppleScript's display notification.
type OSAScript struct {
	opts Options
	run  func(script string) error
}

// New returns the AppleScript notifier.
func New(opts Options) Notifier {
	return &OSAScript{opts: opts, run: runOSAScript}
}

// Notify implements Notifier.
func (o *OSAScript) Notify(title, body string) error {
	return o.run(appleScript(o.opts.AppName, title, body))
}

func runOSAScript(script string) error {
	out, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("osascript: %w: %s", err, out)
	}
	return nil
}

var appleStringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func appleString(s string) string {
	return `"` + appleStringEscaper.Replace(s) + `"`
}

func appleScript(appName, title, body string) string {
	script := "display notification " + appleString(body) + " with title " + appleString(title)
	if appName != "" {
		script += " subtitle " + appleString(appName)
	}
	return script
}
