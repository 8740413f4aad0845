package upstream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vanhieptech/sigma-sub000/internal/metrics"
)

// State of the connection state machine.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateTerminal means no further connect attempts will happen for this
	// instance: failed initial connect, exhausted retries, ended stream, or
	// client-initiated disconnect.
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

const (
	initialBackoff       = 1000 * time.Millisecond
	maxReconnectAttempts = 5

	// ReasonConnectionLost is surfaced when reconnects are exhausted.
	ReasonConnectionLost = "connection lost"
	// ReasonStreamEnded is surfaced when the broadcast ends.
	ReasonStreamEnded = "stream ended"
)

// outBuffer sizes the emission channel; if the consumer stalls this long,
// messages are dropped rather than blocking the read loop.
const outBuffer = 256

// Connection maintains one live feed for one broadcaster. It is owned by
// exactly one session; a session starting a new connection must tear down
// the previous one first.
type Connection struct {
	username string
	dialer   Dialer
	clock    clockwork.Clock
	log      *slog.Logger

	out chan Message

	mu                 sync.Mutex
	state              State
	stream             Stream
	retryTimer         clockwork.Timer
	reconnectEnabled   bool
	clientDisconnected bool
	attempts           int
	backoff            time.Duration
}

func NewConnection(username string, dialer Dialer, clock clockwork.Clock, log *slog.Logger) *Connection {
	if log == nil {
		log = slog.Default()
	}
	return &Connection{
		username:         username,
		dialer:           dialer,
		clock:            clock,
		log:              log.With("broadcaster", username),
		out:              make(chan Message, outBuffer),
		state:            StateIdle,
		reconnectEnabled: true,
		backoff:          initialBackoff,
	}
}

// Messages returns the emission channel. It is never closed; consumers stop
// reading when they tear the session down.
func (c *Connection) Messages() <-chan Message {
	return c.out
}

// Username returns the broadcaster this connection is bound to.
func (c *Connection) Username() string {
	return c.username
}

// State returns the current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the initial connection attempt. It returns immediately;
// the outcome arrives as a Connected or Disconnected message. A failed
// initial attempt is terminal and is never retried.
func (c *Connection) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		c.log.Warn("Connect called in non-idle state", "state", c.state.String())
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	go c.connect(ctx, true)
}

// Disconnect is the caller-initiated teardown. It disables reconnection
// unconditionally and closes any live stream. If a connect is in flight,
// its success handler observes the flag and closes the fresh connection
// instead of emitting Connected.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	c.clientDisconnected = true
	c.reconnectEnabled = false
	c.state = StateTerminal
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	metrics.UpstreamDisconnects.WithLabelValues("client").Inc()
	c.log.Info("Upstream disconnected by client")
}

func (c *Connection) connect(ctx context.Context, initial bool) {
	res, err := c.dialer.Dial(ctx, c.username)

	c.mu.Lock()
	// The flag check happens before any Connected emission: a client
	// disconnect racing an in-flight connect wins, and the fresh stream
	// is closed instead of surfacing as connected.
	if c.clientDisconnected {
		c.state = StateTerminal
		c.mu.Unlock()
		if err == nil {
			res.Stream.Close()
		}
		return
	}

	if err != nil {
		c.mu.Unlock()
		if initial {
			c.terminate("initial_failure", err.Error(), err)
			return
		}
		c.log.Warn("Reconnect attempt failed", "error", err)
		c.scheduleRetry()
		return
	}

	c.state = StateConnected
	c.stream = res.Stream
	c.attempts = 0
	c.backoff = initialBackoff
	c.mu.Unlock()

	c.log.Info("Upstream connected", "room_id", res.RoomID, "upgraded", res.Upgraded)
	c.emit(Connected{RoomID: res.RoomID, Upgraded: res.Upgraded})

	go c.readLoop(res.Stream)
}

func (c *Connection) readLoop(stream Stream) {
	for {
		frame, err := stream.Next()
		if err != nil {
			c.handleDrop(err)
			return
		}

		switch frame.Kind {
		case FrameKindEvent:
			metrics.EventsReceived.WithLabelValues(string(frame.Event.Kind)).Inc()
			c.emit(EventMessage{Event: frame.Event})

		case FrameKindStreamEnd:
			// The broadcast is over: reconnection is pointless.
			c.mu.Lock()
			c.reconnectEnabled = false
			c.state = StateTerminal
			c.stream = nil
			c.mu.Unlock()
			stream.Close()
			c.terminate("stream_ended", ReasonStreamEnded, nil)
			return
		}
	}
}

// handleDrop reacts to an unsolicited read failure while connected.
func (c *Connection) handleDrop(err error) {
	c.mu.Lock()
	if c.clientDisconnected {
		// Expected: Disconnect closed the stream under us.
		c.mu.Unlock()
		return
	}
	c.stream = nil
	if !c.reconnectEnabled {
		c.state = StateTerminal
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.log.Warn("Upstream connection dropped", "error", err)
	c.scheduleRetry()
}

// scheduleRetry arms the backoff timer for the next reconnect attempt, or
// gives up once the attempt budget is spent.
func (c *Connection) scheduleRetry() {
	c.mu.Lock()
	if c.clientDisconnected || !c.reconnectEnabled {
		c.state = StateTerminal
		c.mu.Unlock()
		return
	}
	if c.attempts >= maxReconnectAttempts {
		c.state = StateTerminal
		c.mu.Unlock()
		c.terminate("exhausted", ReasonConnectionLost, nil)
		return
	}

	c.attempts++
	delay := c.backoff
	c.backoff *= 2
	c.state = StateReconnecting
	attempt := c.attempts

	c.retryTimer = c.clock.AfterFunc(delay, func() {
		c.connect(context.Background(), false)
	})
	c.mu.Unlock()

	metrics.ReconnectAttempts.Inc()
	c.log.Info("Scheduling reconnect", "attempt", attempt, "delay", delay)
}

// terminate marks the connection dead and emits the Disconnected signal.
func (c *Connection) terminate(metricReason, reason string, err error) {
	c.mu.Lock()
	c.state = StateTerminal
	c.reconnectEnabled = false
	c.mu.Unlock()

	metrics.UpstreamDisconnects.WithLabelValues(metricReason).Inc()
	if err != nil {
		c.log.Error("Upstream connection terminal", "reason", reason, "error", err)
	} else {
		c.log.Info("Upstream connection terminal", "reason", reason)
	}
	c.emit(Disconnected{Reason: reason, Err: err})
}

// emit delivers a message without ever blocking the read loop.
func (c *Connection) emit(msg Message) {
	select {
	case c.out <- msg:
	default:
		c.log.Warn("Upstream message dropped, consumer too slow")
	}
}
