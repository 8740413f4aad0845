// Package upstream maintains one live connection per session to the
// broadcast platform's event gateway, with a bounded reconnection state
// machine. Signals and events flow out over a single typed channel; there
// is no listener registration.
package upstream

import "github.com/vanhieptech/sigma-sub000/internal/domain"

// Message is one emission from a Connection: a state signal or an event.
type Message interface{ upstreamMessage() }

// Connected is emitted once per successful connect or reconnect, carrying
// the platform-reported session metadata.
type Connected struct {
	RoomID   string
	Upgraded bool
}

func (Connected) upstreamMessage() {}

// Disconnected is emitted when the connection becomes terminal: a failed
// initial connect, exhausted reconnects, an ended stream.
type Disconnected struct {
	Reason string
	Err    error
}

func (Disconnected) upstreamMessage() {}

// EventMessage carries one viewer-interaction event.
type EventMessage struct {
	Event domain.Event
}

func (EventMessage) upstreamMessage() {}
