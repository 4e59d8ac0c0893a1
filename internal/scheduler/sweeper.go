// Package scheduler drives periodic sweeps: probe every enabled target, feed
// observations into history and the correlator.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/watchpost/watchpost/internal/correlator"
	"github.com/watchpost/watchpost/internal/domain"
	"github.com/watchpost/watchpost/internal/history"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/probe"
	"github.com/watchpost/watchpost/internal/repo"
)

const defaultConcurrency = 10

// Sweeper runs the probe/correlate cycle on a cron schedule.
type Sweeper struct {
	Targets    repo.TargetStore
	Rules      repo.RuleStore
	Prober     *probe.BatchProber
	Correlator *correlator.Correlator
	History    history.Store
	Logger     *zap.Logger

	// Concurrency bounds probes in flight per sweep (default 10).
	Concurrency int

	cron *cron.Cron
}

func NewSweeper(targets repo.TargetStore, rules repo.RuleStore, prober *probe.BatchProber, corr *correlator.Correlator, hist history.Store, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		Targets:     targets,
		Rules:       rules,
		Prober:      prober,
		Correlator:  corr,
		History:     hist,
		Logger:      logger,
		Concurrency: defaultConcurrency,
	}
}

// Start registers the sweep under the given cron spec (e.g. "*/5 * * * *")
// and begins the schedule. Overlapping runs are skipped, not queued: a sweep
// slower than the interval must not pile up.
func (s *Sweeper) Start(spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce performs a single full sweep. Exported so the API's one-off check
// endpoint and the CLI can reuse the exact production path.
func (s *Sweeper) RunOnce(ctx context.Context) {
	start := time.Now()
	targets, err := s.Targets.List(ctx)
	if err != nil {
		s.Logger.Error("sweep_list_targets_failed", zap.Error(err))
		return
	}

	enabled := targets[:0:0]
	for _, t := range targets {
		if t.CheckUptime || t.CheckSSL {
			enabled = append(enabled, t)
		}
	}
	if len(enabled) == 0 {
		return
	}

	s.Logger.Info("sweep_started", zap.Int("targets", len(enabled)))
	for oc := range s.Prober.ProbeAll(ctx, enabled, s.Concurrency) {
		s.handle(ctx, oc)
	}

	elapsed := time.Since(start)
	metrics.SweepDuration.Observe(elapsed.Seconds())
	s.Logger.Info("sweep_finished",
		zap.Int("targets", len(enabled)),
		zap.Duration("elapsed", elapsed),
	)
}

func (s *Sweeper) handle(ctx context.Context, oc probe.Outcome) {
	rules, err := s.Rules.ListByTarget(ctx, oc.Target.ID)
	if err != nil {
		s.Logger.Error("sweep_list_rules_failed",
			zap.String("target_id", string(oc.Target.ID)),
			zap.Error(err),
		)
		rules = nil
	}

	if up := oc.Uptime; up != nil {
		metrics.UptimeProbes.WithLabelValues(string(up.Status)).Inc()
		metrics.ProbeDuration.Observe(float64(up.ResponseTimeMS) / 1000)
		// History feeds the uptime_down streak requirement; record before
		// correlating so the current failure counts toward its own streak.
		if err := s.History.Record(ctx, history.Sample{
			TargetID:       oc.Target.ID,
			Status:         up.Status,
			ResponseTimeMS: up.ResponseTimeMS,
			At:             up.CheckedAt,
		}); err != nil {
			s.Logger.Warn("sweep_history_record_failed",
				zap.String("target_id", string(oc.Target.ID)),
				zap.Error(err),
			)
		}
		if err := s.Correlator.Process(ctx, oc.Target, domain.FromUptime(*up), rules); err != nil {
			s.Logger.Error("sweep_correlate_failed",
				zap.String("target_id", string(oc.Target.ID)),
				zap.Error(err),
			)
		}
	}

	if cert := oc.Certificate; cert != nil {
		metrics.CertProbes.WithLabelValues(string(cert.Status)).Inc()
		if err := s.Correlator.Process(ctx, oc.Target, domain.FromCertificate(*cert), rules); err != nil {
			s.Logger.Error("sweep_correlate_failed",
				zap.String("target_id", string(oc.Target.ID)),
				zap.Error(err),
			)
		}
	}
}
