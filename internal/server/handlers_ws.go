package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/vanhieptech/sigma-sub000/internal/domain"
	apperrors "github.com/vanhieptech/sigma-sub000/internal/errors"
	"github.com/vanhieptech/sigma-sub000/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // clients connect from arbitrary frontend origins
	},
}

const (
	writeTimeout = 10 * time.Second

	// sendBuffer absorbs bursts toward one client; when it overflows the
	// frame is dropped rather than stalling the pipeline.
	sendBuffer = 64
)

// controlMessage is one inbound client command.
type controlMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// clientOrigin derives the admission origin: forwarded header first, then
// the socket address, then "unknown".
func clientOrigin(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return registry.OriginUnknown
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "error", err)
		return nil
	}

	origin := clientOrigin(c.Request())

	out := make(chan domain.Frame, sendBuffer)
	send := func(f domain.Frame) {
		select {
		case out <- f:
		default:
			s.log.Warn("Client send buffer full, dropping frame", "type", f.Type, "origin", origin)
		}
	}

	sess, err := s.registry.Register(origin, send)
	if err != nil {
		// Admission rejection: deliver the reason, then drop the transport.
		structured := apperrors.AsStructuredError(err)
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if werr := conn.WriteJSON(domain.Frame{Type: domain.FrameDisconnected, Data: domain.ConnectionState{
			Error: structured.Message,
		}}); werr != nil {
			s.log.Warn("Failed to deliver rejection frame", "error", werr)
		}
		conn.Close()
		return nil
	}

	writerStop := make(chan struct{})
	writerDone := make(chan struct{})
	go s.writeLoop(conn, out, writerStop, writerDone)

	defer func() {
		// Session teardown stops the pump and queue before the writer goes
		// away, so nothing sends into a dead channel.
		sess.Close()
		close(writerStop)
		<-writerDone
		conn.Close()
	}()

	s.readLoop(conn, sess)
	return nil
}

// writeLoop serializes all outbound frames for one client.
func (s *Server) writeLoop(conn *websocket.Conn, out <-chan domain.Frame, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case f := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(f); err != nil {
				s.log.Debug("Client write failed", "error", err)
				return
			}
		}
	}
}

// readLoop consumes control messages until the client goes away.
func (s *Server) readLoop(conn *websocket.Conn, sess *registry.Session) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("Malformed control message", "session_id", sess.ID, "error", err)
			continue
		}
		s.dispatch(msg, sess)
	}
}

func (s *Server) dispatch(msg controlMessage, sess *registry.Session) {
	switch msg.Type {
	case "connectToUser":
		var payload struct {
			Username string `json:"username"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			s.log.Warn("Invalid connectToUser payload", "session_id", sess.ID, "error", err)
			return
		}
		if err := sess.ConnectToUser(context.Background(), payload.Username); err != nil {
			structured := apperrors.AsStructuredError(err)
			sess.Send(domain.Frame{Type: domain.FrameDisconnected, Data: domain.ConnectionState{
				Error: structured.Message,
			}})
		}

	case "disconnect":
		sess.Disconnect()

	case "updateAIConfig":
		var patch domain.ResponseConfigPatch
		if err := json.Unmarshal(msg.Data, &patch); err != nil {
			s.log.Warn("Invalid updateAIConfig payload", "session_id", sess.ID, "error", err)
			return
		}
		cfg := sess.UpdateConfig(patch)
		sess.Send(domain.Frame{Type: "aiConfig", Data: cfg})

	case "setupAIPersonality":
		var p domain.Personality
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			s.log.Warn("Invalid setupAIPersonality payload", "session_id", sess.ID, "error", err)
			return
		}
		sess.SetPersonality(p)

	case "setupCatalog":
		var payload struct {
			Products []domain.Product `json:"products"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			s.log.Warn("Invalid setupCatalog payload", "session_id", sess.ID, "error", err)
			return
		}
		sess.SetCatalog(payload.Products)

	default:
		s.log.Warn("Unknown control message", "session_id", sess.ID, "type", msg.Type)
	}
}
