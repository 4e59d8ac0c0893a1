package probe

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// PerHostLimiter spaces probes against the same host so a sweep over many
// targets sharing one origin does not hammer it.
type PerHostLimiter struct {
	mu        sync.Mutex
	m         map[string]*rate.Limiter
	perSecond float64
	burst     int
}

func NewPerHostLimiter(perSecond float64, burst int) *PerHostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &PerHostLimiter{
		m:         make(map[string]*rate.Limiter),
		perSecond: perSecond,
		burst:     burst,
	}
}

func (p *PerHostLimiter) limiter(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	lim, ok := p.m[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(p.perSecond), p.burst)
		p.m[host] = lim
	}
	return lim
}

// Wait blocks until the host's limiter grants a slot or ctx is done.
func (p *PerHostLimiter) Wait(ctx context.Context, host string) error {
	return p.limiter(host).Wait(ctx)
}
