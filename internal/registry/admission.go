package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// OriginUnknown is assigned when the client's network origin cannot be
// determined. Such sessions bypass the per-origin ceiling and the dial
// rate limit.
const OriginUnknown = "unknown"

// RejectReason describes why a session was not admitted.
type RejectReason string

const (
	RejectPerOrigin RejectReason = "per_origin_limit"
	RejectGlobal    RejectReason = "global_limit"
	RejectRate      RejectReason = "rate_limit"
)

// globalLimiter caps total concurrent sessions per instance, lock-free.
type globalLimiter struct {
	current atomic.Int64
	max     int64
}

func (l *globalLimiter) acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *globalLimiter) release() {
	l.current.Add(-1)
}

// originLimiter caps concurrent sessions per client origin.
type originLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	max    int
}

func (l *originLimiter) acquire(origin string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[origin] >= l.max {
		return false
	}
	l.counts[origin]++
	return true
}

func (l *originLimiter) release(origin string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if count := l.counts[origin]; count > 0 {
		l.counts[origin] = count - 1
		if l.counts[origin] == 0 {
			delete(l.counts, origin)
		}
	}
}

func (l *originLimiter) count(origin string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[origin]
}

// dialRateLimiter throttles new session attempts per origin with a token
// bucket per origin. Idle buckets are swept periodically.
type dialRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rateEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (l *dialRateLimiter) allow(origin string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Now().After(l.cleanupAt) {
		cutoff := time.Now().Add(-10 * time.Minute)
		for o, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, o)
			}
		}
		l.cleanupAt = time.Now().Add(5 * time.Minute)
	}

	entry, ok := l.limiters[origin]
	if !ok {
		entry = &rateEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[origin] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// Admission is the session admission policy: a per-origin ceiling, a global
// cap, and a per-origin dial rate limit. Origin "unknown" skips the
// per-origin checks and is only bounded by the global cap.
type Admission struct {
	global    *globalLimiter
	perOrigin *originLimiter
	rate      *dialRateLimiter
}

func NewAdmission(globalMax int64, perOriginMax int, dialsPerSecond float64, burst int) *Admission {
	return &Admission{
		global:    &globalLimiter{max: globalMax},
		perOrigin: &originLimiter{counts: make(map[string]int), max: perOriginMax},
		rate: &dialRateLimiter{
			limiters:  make(map[string]*rateEntry),
			rate:      rate.Limit(dialsPerSecond),
			burst:     burst,
			cleanupAt: time.Now().Add(5 * time.Minute),
		},
	}
}

// Admit attempts to admit a session from origin. On rejection it returns
// the reason; nothing is held and Release must not be called.
func (a *Admission) Admit(origin string) (bool, RejectReason) {
	if origin != OriginUnknown && !a.rate.allow(origin) {
		return false, RejectRate
	}
	if !a.global.acquire() {
		return false, RejectGlobal
	}
	if origin != OriginUnknown && !a.perOrigin.acquire(origin) {
		a.global.release()
		return false, RejectPerOrigin
	}
	return true, ""
}

// Release returns the slots held by one admitted session. Callers must
// release exactly once per admission; Session guards this with a Once.
func (a *Admission) Release(origin string) {
	if origin != OriginUnknown {
		a.perOrigin.release(origin)
	}
	a.global.release()
}

// ActiveSessions returns the global session count.
func (a *Admission) ActiveSessions() int64 {
	return a.global.current.Load()
}

// OriginSessions returns the session count for one origin.
func (a *Admission) OriginSessions(origin string) int {
	return a.perOrigin.count(origin)
}
