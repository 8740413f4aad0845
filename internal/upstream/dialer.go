package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vanhieptech/sigma-sub000/internal/domain"
)

// Frame is one decoded message from the platform gateway stream.
type Frame struct {
	// Kind is "event" or "streamEnd".
	Kind  string
	Event domain.Event
}

const (
	FrameKindEvent     = "event"
	FrameKindStreamEnd = "streamEnd"
)

// Stream is one established feed of platform frames.
type Stream interface {
	// Next blocks until the next frame or a read error.
	Next() (Frame, error)
	Close() error
}

// ConnectResult is a successful dial: the live stream plus the metadata the
// platform reported during the handshake.
type ConnectResult struct {
	Stream   Stream
	RoomID   string
	Upgraded bool
}

// Dialer establishes one connection to a broadcaster's event feed. Tests
// substitute a fake; production uses the websocket gateway dialer below.
type Dialer interface {
	Dial(ctx context.Context, username string) (*ConnectResult, error)
}

const handshakeTimeout = 15 * time.Second

// GatewayDialer dials the platform's websocket event gateway.
type GatewayDialer struct {
	baseURL string
}

func NewGatewayDialer(baseURL string) *GatewayDialer {
	return &GatewayDialer{baseURL: baseURL}
}

// wire formats of the gateway protocol
type gatewayHello struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	Upgraded bool   `json:"upgraded"`
	Error    string `json:"error"`
}

type gatewayFrame struct {
	Type  string       `json:"type"`
	Event domain.Event `json:"event"`
}

func (d *GatewayDialer) Dial(ctx context.Context, username string) (*ConnectResult, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	u = u.JoinPath("live", username, "events")

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial gateway for %s: %w", username, err)
	}

	// First frame is the handshake with the room metadata.
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var hello gatewayHello
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("gateway handshake failed for %s: %w", username, err)
	}
	conn.SetReadDeadline(time.Time{})

	if hello.Type != "connected" {
		conn.Close()
		if hello.Error != "" {
			return nil, fmt.Errorf("gateway refused %s: %s", username, hello.Error)
		}
		return nil, fmt.Errorf("unexpected handshake frame %q for %s", hello.Type, username)
	}

	return &ConnectResult{
		Stream:   &wsStream{conn: conn},
		RoomID:   hello.RoomID,
		Upgraded: hello.Upgraded,
	}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Next() (Frame, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return Frame{}, err
		}

		var raw gatewayFrame
		if err := json.Unmarshal(data, &raw); err != nil {
			// Malformed payloads drop that one frame, not the stream.
			continue
		}

		switch raw.Type {
		case FrameKindStreamEnd:
			return Frame{Kind: FrameKindStreamEnd}, nil
		case FrameKindEvent:
			ev := raw.Event
			if ev.Timestamp.IsZero() {
				ev.Timestamp = time.Now()
			}
			// The platform labels joins "member" on the wire.
			if ev.Kind == "member" {
				ev.Kind = domain.EventJoin
			}
			return Frame{Kind: FrameKindEvent, Event: ev}, nil
		default:
			continue
		}
	}
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}
