//go:build !darwin && !linux && !freebsd && !openbsd && !netbsd && !dragonfly && !windows

package notify

// New returns a notifier that always fails with ErrUnsupported.
func New(Options) Notifier {
	return unsupported{}
}
