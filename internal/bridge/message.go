// Package bridge carries events from the untrusted page context to the host
// control loop: a closed set of typed messages, a total decoder for the raw
// page payloads, and the unbounded queue between the two.
package bridge

import "fmt"

// Kind identifies a Message variant.
type Kind int

const (
	KindNavigate Kind = iota + 1
	KindConnectionError
	KindNotify
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindNavigate:
		return "navigate"
	case KindConnectionError:
		return "connection_error"
	case KindNotify:
		return "notify"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is one of Navigate, ConnectionError or Notify. The interface is
// sealed; values are never mutated after construction.
type Message interface {
	Kind() Kind
	sealed()
}

// Navigate asks the surface to load URL.
type Navigate struct {
	URL string
}

// ConnectionError asks the surface to render an error state.
type ConnectionError struct {
	Detail string
}

// Notify asks the host to show a desktop notification.
type Notify struct {
	Title string
	Body  string
}

func (Navigate) Kind() Kind        { return KindNavigate }
func (ConnectionError) Kind() Kind { return KindConnectionError }
func (Notify) Kind() Kind          { return KindNotify }

func (Navigate) sealed()        {}
func (ConnectionError) sealed() {}
func (Notify) sealed()          {}
