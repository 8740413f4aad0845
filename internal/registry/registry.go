// Package registry binds inbound client sessions to upstream connections
// and response queues, and enforces admission limits.
package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vanhieptech/sigma-sub000/internal/dedup"
	"github.com/vanhieptech/sigma-sub000/internal/domain"
	apperrors "github.com/vanhieptech/sigma-sub000/internal/errors"
	"github.com/vanhieptech/sigma-sub000/internal/gate"
	"github.com/vanhieptech/sigma-sub000/internal/metrics"
	"github.com/vanhieptech/sigma-sub000/internal/respond"
	"github.com/vanhieptech/sigma-sub000/internal/upstream"
)

// Pipeline generates one response per queued request. Satisfied by
// respond.Generator; tests substitute a stub.
type Pipeline interface {
	Generate(ctx context.Context, req domain.QueuedRequest, personality domain.Personality, catalog []domain.Product) domain.GeneratedResponse
}

// Registry creates and tracks sessions. One instance serves the whole
// process.
type Registry struct {
	dialer    upstream.Dialer
	pipeline  Pipeline
	dedup     dedup.Store
	clock     clockwork.Clock
	admission *Admission
	log       *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func New(dialer upstream.Dialer, pipeline Pipeline, store dedup.Store, clock clockwork.Clock, admission *Admission, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		dialer:    dialer,
		pipeline:  pipeline,
		dedup:     store,
		clock:     clock,
		admission: admission,
		log:       log,
		sessions:  make(map[string]*Session),
	}
}

// Register admits and creates a session for one client channel. The
// rejection error carries the message the client displays.
func (r *Registry) Register(origin string, send Sender) (*Session, error) {
	admitted, reason := r.admission.Admit(origin)
	if !admitted {
		metrics.AdmissionRejections.WithLabelValues(string(reason)).Inc()
		r.log.Warn("Session rejected", "origin", origin, "reason", string(reason))
		return nil, apperrors.RateLimitedError(rejectMessage(reason))
	}

	s := &Session{
		ID:     uuid.NewString(),
		origin: origin,
		dialer: r.dialer,
		clock:  r.clock,
		send:   send,
		log:    r.log,
	}
	s.gate = gate.New(domain.DefaultResponseConfig(), r.dedup, r.clock, nil, r.log)
	s.queue = respond.NewQueue(r.pipeline, s.deliver, r.clock, r.log)
	s.release = func() {
		r.admission.Release(origin)
		metrics.ActiveSessions.Dec()
		r.remove(s.ID)
	}
	s.queue.Start()

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	metrics.ActiveSessions.Inc()

	r.log.Info("Session registered", "session_id", s.ID, "origin", origin)
	return s, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close tears down every live session; used on shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// rejectMessage is the user-visible text for an admission rejection.
func rejectMessage(reason RejectReason) string {
	if reason == RejectPerOrigin {
		return "rate limited"
	}
	return "Too many connection attempts. Please try again later."
}
