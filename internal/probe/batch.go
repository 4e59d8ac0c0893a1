package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/watchpost/watchpost/internal/domain"
)

// UptimeProber is satisfied by *UptimeProbe; batch tests substitute fakes.
type UptimeProber interface {
	Probe(ctx context.Context, t domain.Target) domain.UptimeObservation
}

// Outcome pairs a target with whatever observations its dispatch produced.
// A target with both checks enabled yields one Outcome carrying both.
type Outcome struct {
	Target      domain.Target
	Uptime      *domain.UptimeObservation
	Certificate *domain.CertificateObservation
}

// BatchProber fans probes out across many targets with a bounded number in
// flight. Failures are isolated per target: a panicking or timing-out probe
// is translated into a down/error observation for that target only, and
// every dispatched target yields exactly one Outcome.
type BatchProber struct {
	Uptime   UptimeProber
	Certs    CertProber
	HostRate *PerHostLimiter // optional
	Logger   *zap.Logger
}

func NewBatchProber(uptime UptimeProber, certs CertProber, logger *zap.Logger) *BatchProber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchProber{Uptime: uptime, Certs: certs, Logger: logger}
}

// ProbeAll dispatches every target and streams outcomes as they complete.
// No ordering is guaranteed across targets. The channel is closed after the
// last outcome; it is buffered so slow consumers never wedge a worker.
func (b *BatchProber) ProbeAll(ctx context.Context, targets []domain.Target, limit int) <-chan Outcome {
	if limit < 1 {
		limit = 1
	}
	out := make(chan Outcome, len(targets))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for _, tgt := range targets {
		t := tgt
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			// Per-target timing starts here, after the slot is acquired,
			// so queueing behind the semaphore never inflates response time.
			out <- b.probeOne(ctx, t)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (b *BatchProber) probeOne(ctx context.Context, t domain.Target) (oc Outcome) {
	oc.Target = t
	defer func() {
		if r := recover(); r != nil {
			b.Logger.Warn("probe_panic",
				zap.String("target_id", string(t.ID)),
				zap.String("url", t.URL),
				zap.Any("panic", r),
			)
			msg := fmt.Sprintf("probe failure: %v", r)
			now := time.Now().UTC()
			if t.CheckUptime && oc.Uptime == nil {
				oc.Uptime = &domain.UptimeObservation{
					TargetID:     t.ID,
					Status:       domain.UptimeDown,
					ErrorMessage: msg,
					CheckedAt:    now,
				}
			}
			if t.CheckSSL && oc.Certificate == nil {
				oc.Certificate = &domain.CertificateObservation{
					TargetID:     t.ID,
					Host:         t.Host(),
					Status:       domain.CertError,
					ErrorMessage: msg,
					CheckedAt:    now,
				}
			}
		}
	}()

	if b.HostRate != nil {
		if host := t.Host(); host != "" {
			// Politeness wait happens before the probe records its start,
			// so it never counts into the target's response time.
			_ = b.HostRate.Wait(ctx, host)
		}
	}

	if t.CheckUptime && b.Uptime != nil {
		obs := b.Uptime.Probe(ctx, t)
		oc.Uptime = &obs
	}
	if t.CheckSSL && b.Certs != nil {
		host := t.Host()
		if host == "" {
			oc.Certificate = &domain.CertificateObservation{
				TargetID:     t.ID,
				Status:       domain.CertError,
				ErrorMessage: fmt.Sprintf("target URL %q has no host", t.URL),
				CheckedAt:    time.Now().UTC(),
			}
		} else {
			obs := b.Certs.Probe(ctx, host, t.TLSPort(), t.EffectiveTimeout())
			obs.TargetID = t.ID
			oc.Certificate = &obs
		}
	}
	return oc
}
