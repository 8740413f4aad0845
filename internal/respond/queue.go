package respond

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vanhieptech/sigma-sub000/internal/domain"
	"github.com/vanhieptech/sigma-sub000/internal/metrics"
)

const (
	// idlePollInterval is how often an empty queue re-checks for work.
	// A notify-based wake would cut latency here but polling keeps the
	// loop trivially responsive to config changes and shutdown.
	idlePollInterval = 1 * time.Second

	// minPace is the floor for the pause after each delivery; paceMargin
	// is added on top of the audio duration so consecutive responses do
	// not run into each other.
	minPace    = 2 * time.Second
	paceMargin = 500 * time.Millisecond

	// maxPending bounds the per-session backlog. The gate already thins
	// the stream heavily, so hitting this means generation is wedged or
	// the pacing cannot keep up; newest requests are dropped.
	maxPending = 100

	// generateTimeout bounds one full pipeline run.
	generateTimeout = 60 * time.Second
)

// pipeline is what the queue needs from the generation side.
type pipeline interface {
	Generate(ctx context.Context, req domain.QueuedRequest, personality domain.Personality, catalog []domain.Product) domain.GeneratedResponse
}

// Queue serializes response generation for one session: strictly FIFO, at
// most one request in flight, paced delivery. Across sessions queues are
// fully independent.
type Queue struct {
	gen     pipeline
	deliver func(domain.AIResponse)
	clock   clockwork.Clock
	log     *slog.Logger

	mu          sync.Mutex
	items       []domain.QueuedRequest
	processing  bool
	personality domain.Personality
	catalog     []domain.Product

	pollInterval time.Duration
	pace         time.Duration
	margin       time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewQueue creates a stopped queue; call Start to launch the worker.
// deliver is invoked once per generated response, from the worker goroutine.
func NewQueue(gen pipeline, deliver func(domain.AIResponse), clock clockwork.Clock, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		gen:          gen,
		deliver:      deliver,
		clock:        clock,
		log:          log,
		personality:  DefaultPersonality(),
		pollInterval: idlePollInterval,
		pace:         minPace,
		margin:       paceMargin,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the worker loop.
func (q *Queue) Start() {
	go q.run()
}

// Enqueue appends a request in arrival order. When the backlog is full the
// request is dropped and logged.
func (q *Queue) Enqueue(req domain.QueuedRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= maxPending {
		q.log.Warn("Response queue full, dropping request", "kind", req.Kind, "user", req.User.UniqueID)
		return
	}
	q.items = append(q.items, req)
	metrics.QueueDepth.Inc()
}

// SetPersonality swaps the active personality for subsequent responses.
func (q *Queue) SetPersonality(p domain.Personality) {
	q.mu.Lock()
	q.personality = p
	q.mu.Unlock()
}

// SetCatalog swaps the active product catalog.
func (q *Queue) SetCatalog(products []domain.Product) {
	q.mu.Lock()
	q.catalog = products
	q.mu.Unlock()
}

// Stop halts the worker and discards pending requests. An in-flight
// generation runs to completion but its delivery is dropped. Safe to call
// more than once.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.mu.Lock()
		metrics.QueueDepth.Sub(float64(len(q.items)))
		q.items = nil
		q.mu.Unlock()
	})
}

// Processing reports whether a request is currently in flight.
func (q *Queue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// Len returns the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Done is closed when the worker loop has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		req, ok := q.pop()
		if !ok {
			select {
			case <-q.stopCh:
				return
			case <-q.clock.After(q.pollInterval):
			}
			continue
		}

		resp, generated := q.process(req)

		select {
		case <-q.stopCh:
			// Session is gone: the result has no delivery target.
			return
		default:
			if generated {
				q.deliver(domain.AIResponse{
					Event:     req.Kind,
					Text:      resp.Text,
					AudioURL:  resp.AudioURL,
					UserData:  req.User,
					Timestamp: q.clock.Now(),
				})
			}
		}

		pause := resp.Duration
		if pause < q.pace {
			pause = q.pace
		}
		pause += q.margin

		select {
		case <-q.stopCh:
			return
		case <-q.clock.After(pause):
		}
	}
}

// process runs one generation with the single-flight guard held. A panic in
// the pipeline is caught so one bad request cannot wedge the session; the
// loop then paces and continues as if the request had completed.
func (q *Queue) process(req domain.QueuedRequest) (resp domain.GeneratedResponse, ok bool) {
	q.mu.Lock()
	q.processing = true
	personality := q.personality
	catalog := q.catalog
	q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			q.log.Error("Generation panicked, skipping request", "kind", req.Kind, "panic", r)
			resp, ok = domain.GeneratedResponse{Duration: q.pace}, false
		}
		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
	defer cancel()

	return q.gen.Generate(ctx, req, personality, catalog), true
}

func (q *Queue) pop() (domain.QueuedRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return domain.QueuedRequest{}, false
	}
	req := q.items[0]
	q.items = q.items[1:]
	metrics.QueueDepth.Dec()
	return req, true
}
