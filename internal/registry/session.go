package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/vanhieptech/sigma-sub000/internal/domain"
	apperrors "github.com/vanhieptech/sigma-sub000/internal/errors"
	"github.com/vanhieptech/sigma-sub000/internal/gate"
	"github.com/vanhieptech/sigma-sub000/internal/respond"
	"github.com/vanhieptech/sigma-sub000/internal/upstream"
)

// Sender delivers one frame to the session's client channel. It must not
// block; the transport layer buffers or drops on its own.
type Sender func(domain.Frame)

// Session binds one client channel to at most one upstream connection and
// one response queue. All methods are safe for concurrent use; the control
// channel and the event pump touch it at the same time.
type Session struct {
	ID     string
	origin string

	dialer upstream.Dialer
	clock  clockwork.Clock
	send   Sender
	gate   *gate.Gate
	queue  *respond.Queue
	log    *slog.Logger

	mu       sync.Mutex
	conn     *upstream.Connection
	pumpStop chan struct{}
	closed   bool

	releaseOnce sync.Once
	release     func()
}

// ConnectToUser tears down any previous upstream connection and dials the
// given broadcaster. The outcome arrives on the client channel as a
// connected or disconnected frame.
func (s *Session) ConnectToUser(ctx context.Context, username string) error {
	if username == "" {
		return apperrors.ValidationError("username is required")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperrors.ValidationError("session is closed")
	}
	s.stopUpstreamLocked()

	conn := upstream.NewConnection(username, s.dialer, s.clock, s.log)
	stop := make(chan struct{})
	s.conn = conn
	s.pumpStop = stop
	s.mu.Unlock()

	go s.pump(conn, stop)
	conn.Connect(ctx)

	s.log.Info("Session connecting to broadcaster", "session_id", s.ID, "broadcaster", username)
	return nil
}

// Disconnect tears down the upstream connection on client request and
// confirms with a disconnected frame.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.stopUpstreamLocked()
	s.mu.Unlock()

	s.send(domain.Frame{Type: domain.FrameDisconnected, Data: domain.ConnectionState{}})
}

// UpdateConfig merges a partial gate policy change and returns the result.
func (s *Session) UpdateConfig(patch domain.ResponseConfigPatch) domain.ResponseConfig {
	return s.gate.Update(patch)
}

// Config returns the current gate policy.
func (s *Session) Config() domain.ResponseConfig {
	return s.gate.Config()
}

// SetPersonality swaps the persona used for subsequent responses.
func (s *Session) SetPersonality(p domain.Personality) {
	s.queue.SetPersonality(p)
}

// SetCatalog swaps the product list available to question answering.
func (s *Session) SetCatalog(products []domain.Product) {
	s.queue.SetCatalog(products)
}

// Close is the session teardown: upstream disconnected, queue discarded,
// admission slot returned. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopUpstreamLocked()
	s.mu.Unlock()

	s.queue.Stop()
	s.releaseOnce.Do(s.release)
	s.log.Info("Session closed", "session_id", s.ID)
}

// stopUpstreamLocked halts the pump and disconnects the current upstream
// connection, if any. Caller holds s.mu.
func (s *Session) stopUpstreamLocked() {
	if s.pumpStop != nil {
		close(s.pumpStop)
		s.pumpStop = nil
	}
	if s.conn != nil {
		s.conn.Disconnect()
		s.conn = nil
	}
}

// pump forwards upstream messages to the client channel and routes
// response-worthy events into the queue. One pump runs per upstream
// connection; replacing the connection stops the old pump first.
func (s *Session) pump(conn *upstream.Connection, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case msg := <-conn.Messages():
			switch m := msg.(type) {
			case upstream.Connected:
				s.send(domain.Frame{Type: domain.FrameConnected, Data: domain.ConnectionState{
					IsConnected: true,
					RoomID:      m.RoomID,
					Upgraded:    m.Upgraded,
				}})

			case upstream.Disconnected:
				s.send(domain.Frame{Type: domain.FrameDisconnected, Data: domain.ConnectionState{
					Error: clientReason(m),
				}})

			case upstream.EventMessage:
				ev := m.Event
				s.send(domain.Frame{Type: string(ev.Kind), Data: ev})
				if req, ok := s.gate.Decide(context.Background(), ev); ok {
					s.queue.Enqueue(req)
				}
			}
		}
	}
}

// Send pushes an arbitrary frame to the client channel; the transport layer
// uses it for control acknowledgements.
func (s *Session) Send(f domain.Frame) {
	s.send(f)
}

// deliver pushes one generated response to the client channel. Called from
// the queue's worker goroutine.
func (s *Session) deliver(resp domain.AIResponse) {
	s.send(domain.Frame{Type: domain.FrameAIResponse, Data: resp})
}

// clientReason maps a terminal upstream disconnect to the error string the
// client displays. Initial-connect failures surface their specific cause;
// everything else is a connection-lost or stream-ended notice.
func clientReason(m upstream.Disconnected) string {
	switch {
	case m.Err != nil:
		return m.Reason
	case m.Reason == upstream.ReasonStreamEnded:
		return "Stream ended"
	default:
		return "Connection lost. Unable to reconnect."
	}
}
