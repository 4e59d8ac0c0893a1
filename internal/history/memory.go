package history

import (
	"context"
	"sync"
	"time"

	"github.com/watchpost/watchpost/internal/domain"
)

const defaultRetention = 24 * time.Hour

// Memory keeps samples in process. Suitable for single-node deployments and
// tests; multi-node setups use the redis store.
type Memory struct {
	mu        sync.RWMutex
	samples   map[domain.TargetID][]Sample
	retention time.Duration
}

func NewMemory() *Memory {
	return &Memory{
		samples:   make(map[domain.TargetID][]Sample),
		retention: defaultRetention,
	}
}

func (m *Memory) Record(ctx context.Context, s Sample) error {
	if s.At.IsZero() {
		s.At = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	list := append(m.samples[s.TargetID], s)
	cutoff := time.Now().Add(-m.retention)
	for len(list) > 0 && list[0].At.Before(cutoff) {
		list = list[1:]
	}
	m.samples[s.TargetID] = list
	return nil
}

func (m *Memory) CountDown(ctx context.Context, id domain.TargetID, window time.Duration) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	n := 0
	for _, s := range m.samples[id] {
		if s.Status == domain.UptimeDown && !s.At.Before(cutoff) {
			n++
		}
	}
	return n, nil
}
