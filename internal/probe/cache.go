package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/watchpost/watchpost/internal/domain"
)

// CertCache wraps a CertProber with a TTL'd LRU so dense sweeps over many
// targets on the same host do not re-handshake it every time. Error
// observations are never cached; a transient connect failure should be
// retried on the next sweep.
type CertCache struct {
	inner CertProber
	lru   *expirable.LRU[string, domain.CertificateObservation]
}

func NewCertCache(inner CertProber, size int, ttl time.Duration) *CertCache {
	if size <= 0 {
		size = 1024
	}
	return &CertCache{
		inner: inner,
		lru:   expirable.NewLRU[string, domain.CertificateObservation](size, nil, ttl),
	}
}

func (c *CertCache) Probe(ctx context.Context, host string, port int, timeout time.Duration) domain.CertificateObservation {
	if port == 0 {
		port = domain.DefaultTLSPort
	}
	key := net.JoinHostPort(host, strconv.Itoa(port))
	if obs, ok := c.lru.Get(key); ok {
		return obs
	}
	obs := c.inner.Probe(ctx, host, port, timeout)
	if obs.Status != domain.CertError {
		c.lru.Add(key, obs)
	}
	return obs
}
