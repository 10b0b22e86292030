package bridge

// HostEventKind identifies an event raised by the window host rather than
// the page.
type HostEventKind int

const (
	// CloseRequested means the user closed the window or the host went away.
	CloseRequested HostEventKind = iota + 1
)

func (k HostEventKind) String() string {
	switch k {
	case CloseRequested:
		return "close_requested"
	default:
		return "host_event"
	}
}

// HostEvent is delivered to the control loop by the window surface.
type HostEvent struct {
	Kind   HostEventKind
	Reason string
}
