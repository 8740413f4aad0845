package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanhieptech/sigma-sub000/internal/config"
	"github.com/vanhieptech/sigma-sub000/internal/dedup"
	"github.com/vanhieptech/sigma-sub000/internal/domain"
	"github.com/vanhieptech/sigma-sub000/internal/registry"
	"github.com/vanhieptech/sigma-sub000/internal/upstream"
)

// --- Fakes ---

type fakeStream struct {
	frames chan upstream.Frame
	closed chan struct{}
	once   sync.Once
}

func (s *fakeStream) Next() (upstream.Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.closed:
		return upstream.Frame{}, errors.New("closed")
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeDialer struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
}

func (d *fakeDialer) Dial(ctx context.Context, username string) (*upstream.ConnectResult, error) {
	if d.err != nil {
		return nil, d.err
	}
	stream := &fakeStream{frames: make(chan upstream.Frame, 16), closed: make(chan struct{})}
	d.mu.Lock()
	d.streams = append(d.streams, stream)
	d.mu.Unlock()
	return &upstream.ConnectResult{Stream: stream, RoomID: "room-" + username, Upgraded: true}, nil
}

type fakePipeline struct{}

func (fakePipeline) Generate(_ context.Context, req domain.QueuedRequest, _ domain.Personality, _ []domain.Product) domain.GeneratedResponse {
	return domain.GeneratedResponse{Text: "ok", Duration: time.Millisecond}
}

type wireFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, dialer upstream.Dialer) (*Server, *httptest.Server) {
	t.Helper()
	clock := clockwork.NewRealClock()
	store := dedup.NewMemory(clock, 30*time.Second)
	admission := registry.NewAdmission(100, 3, 1000, 1000)
	reg := registry.New(dialer, fakePipeline{}, store, clock, admission, nil)

	cfg := &config.Config{Port: "0", AudioCacheDir: t.TempDir()}
	srv := NewServer(cfg, reg, nil, nil)

	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)
	t.Cleanup(reg.Close)
	return srv, ts
}

func dialWS(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads frames until one of the wanted type arrives.
func readFrame(t *testing.T, conn *websocket.Conn, frameType string) wireFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f wireFrame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %q frame", frameType)
		if f.Type == frameType {
			return f
		}
	}
}

func sendControl(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(controlMessage{Type: msgType, Data: payload}))
}

// --- Tests ---

func TestWebSocket_ConnectToUserFlow(t *testing.T) {
	dialer := &fakeDialer{}
	_, ts := newTestServer(t, dialer)
	conn := dialWS(t, ts, nil)

	sendControl(t, conn, "connectToUser", map[string]string{"username": "host"})

	f := readFrame(t, conn, domain.FrameConnected)
	var state domain.ConnectionState
	require.NoError(t, json.Unmarshal(f.Data, &state))
	assert.True(t, state.IsConnected)
	assert.Equal(t, "room-host", state.RoomID)
	assert.True(t, state.Upgraded)

	// Raw events arrive under their own kind.
	dialer.mu.Lock()
	stream := dialer.streams[0]
	dialer.mu.Unlock()
	stream.frames <- upstream.Frame{Kind: upstream.FrameKindEvent, Event: domain.Event{
		Kind: domain.EventComment, UserID: "u1", Nickname: "ann", Comment: "hi",
	}}

	ev := readFrame(t, conn, "comment")
	var got domain.Event
	require.NoError(t, json.Unmarshal(ev.Data, &got))
	assert.Equal(t, "ann", got.Nickname)
}

func TestWebSocket_InitialConnectFailure(t *testing.T) {
	_, ts := newTestServer(t, &fakeDialer{err: errors.New("user is not live")})
	conn := dialWS(t, ts, nil)

	sendControl(t, conn, "connectToUser", map[string]string{"username": "offline"})

	f := readFrame(t, conn, domain.FrameDisconnected)
	var state domain.ConnectionState
	require.NoError(t, json.Unmarshal(f.Data, &state))
	assert.False(t, state.IsConnected)
	assert.Contains(t, state.Error, "user is not live")
}

func TestWebSocket_FourthConnectionFromOriginRejected(t *testing.T) {
	_, ts := newTestServer(t, &fakeDialer{})
	header := http.Header{"X-Forwarded-For": []string{"203.0.113.7"}}

	for i := 0; i < 3; i++ {
		dialWS(t, ts, header)
	}

	rejected := dialWS(t, ts, header)
	f := readFrame(t, rejected, domain.FrameDisconnected)
	var state domain.ConnectionState
	require.NoError(t, json.Unmarshal(f.Data, &state))
	assert.False(t, state.IsConnected)
	assert.False(t, state.IsConnecting)
	assert.Equal(t, "rate limited", state.Error)

	// The transport is closed right after the rejection frame.
	rejected.SetReadDeadline(time.Now().Add(2 * time.Second))
	var next wireFrame
	assert.Error(t, rejected.ReadJSON(&next))
}

func TestWebSocket_UpdateAIConfigAcknowledged(t *testing.T) {
	_, ts := newTestServer(t, &fakeDialer{})
	conn := dialWS(t, ts, nil)

	sendControl(t, conn, "updateAIConfig", map[string]any{
		"enableAIResponses": true,
		"giftThreshold":     25,
	})

	f := readFrame(t, conn, "aiConfig")
	var cfg domain.ResponseConfig
	require.NoError(t, json.Unmarshal(f.Data, &cfg))
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 25, cfg.GiftThreshold)
	// Untouched knobs keep their defaults.
	assert.Equal(t, 50, cfg.LikeThreshold)
}

func TestWebSocket_SessionReleasedOnClose(t *testing.T) {
	srv, ts := newTestServer(t, &fakeDialer{})
	header := http.Header{"X-Forwarded-For": []string{"203.0.113.9"}}

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dialWS(t, ts, header)
	}
	waitFor(t, func() bool { return srv.registry.Len() == 3 })

	conns[0].Close()
	waitFor(t, func() bool { return srv.registry.Len() == 2 })

	// The freed slot admits a new session from the same origin.
	fresh := dialWS(t, ts, header)
	sendControl(t, fresh, "connectToUser", map[string]string{"username": "host"})
	readFrame(t, fresh, domain.FrameConnected)
}

func TestHealthEndpoints(t *testing.T) {
	_, ts := newTestServer(t, &fakeDialer{})

	resp, err := http.Get(ts.URL + "/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestReadiness_FailingRedis(t *testing.T) {
	clock := clockwork.NewRealClock()
	store := dedup.NewMemory(clock, 30*time.Second)
	reg := registry.New(&fakeDialer{}, fakePipeline{}, store, clock, registry.NewAdmission(10, 3, 100, 100), nil)
	cfg := &config.Config{Port: "0", AudioCacheDir: t.TempDir()}
	srv := NewServer(cfg, reg, func(context.Context) error { return errors.New("redis down") }, nil)

	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 503, resp.StatusCode)
}

func TestClientOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "192.0.2.4:51234"
	assert.Equal(t, "192.0.2.4", clientOrigin(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.1, 10.0.0.1")
	assert.Equal(t, "203.0.113.1", clientOrigin(req))

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = ""
	assert.Equal(t, registry.OriginUnknown, clientOrigin(req))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
