package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Memory is the in-process Store used by default. Expiry runs on a per-key
// timer so each key is purged exactly once.
type Memory struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemory(clock clockwork.Clock, ttl time.Duration) *Memory {
	return &Memory{
		clock: clock,
		ttl:   ttl,
		keys:  make(map[string]struct{}),
	}
}

func (m *Memory) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok, nil
}

func (m *Memory) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	m.clock.AfterFunc(m.ttl, func() {
		m.mu.Lock()
		delete(m.keys, key)
		m.mu.Unlock()
	})
	return true, nil
}

// Len returns the number of active keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
