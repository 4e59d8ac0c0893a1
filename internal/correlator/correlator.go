// Package correlator turns probe observations into deduplicated, escalating,
// auto-resolving alert records. Its central invariant: at most one unresolved
// Alert exists per (target, alert type) pair.
package correlator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/watchpost/watchpost/internal/domain"
	"github.com/watchpost/watchpost/internal/history"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/notify"
	"github.com/watchpost/watchpost/internal/repo"
)

const (
	// uptime_down requires this many down observations in the trailing window.
	downObservations = 3
	downWindow       = time.Hour

	// Auto-resolve for expiry-family alerts requires this much headroom, so a
	// cert renewed for only a few days does not flap the alert closed.
	resolveSafeDays = 30
)

type Correlator struct {
	rules    repo.RuleStore
	alerts   repo.AlertStore
	history  history.Store
	notifier notify.Dispatcher // optional
	logger   *zap.Logger

	// now is swapped out by tests.
	now func() time.Time

	// keyed locks serializing evaluations per (target, type); evaluations for
	// different keys proceed fully in parallel.
	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

func New(rules repo.RuleStore, alerts repo.AlertStore, hist history.Store, notifier notify.Dispatcher, logger *zap.Logger) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{
		rules:    rules,
		alerts:   alerts,
		history:  hist,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		keys:     make(map[string]*sync.Mutex),
	}
}

func (c *Correlator) lock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lk, ok := c.keys[key]
	if !ok {
		lk = &sync.Mutex{}
		c.keys[key] = lk
	}
	return lk
}

// ShouldTrigger evaluates one rule against one observation. The bypass flags
// exist for non-production verification of disabled or cooled-down rules;
// production callers pass both as false.
func (c *Correlator) ShouldTrigger(ctx context.Context, rule domain.AlertRule, obs domain.Observation, bypassCooldown, bypassEnabledCheck bool) (bool, error) {
	if !rule.Enabled && !bypassEnabledCheck {
		return false, nil
	}
	if !bypassCooldown && rule.LastTriggeredAt != nil {
		if c.now().Sub(*rule.LastTriggeredAt) < rule.EffectiveCooldown() {
			return false, nil
		}
	}

	switch rule.Type {
	case domain.AlertSSLExpiry:
		cert := obs.Certificate
		if cert == nil || cert.Status == domain.CertError {
			return false, nil
		}
		// Covers zero and negative days: an expired cert is this rule's job.
		return cert.DaysUntilExpiry <= rule.ThresholdDays, nil

	case domain.AlertSSLInvalid:
		cert := obs.Certificate
		if cert == nil {
			return false, nil
		}
		// Deliberately excludes expired: expiry is owned by ssl_expiry and
		// lets_encrypt_renewal, so one condition never raises two alerts.
		return cert.Status == domain.CertInvalid || cert.Status == domain.CertError, nil

	case domain.AlertUptimeDown:
		up := obs.Uptime
		if up == nil || up.Status != domain.UptimeDown {
			return false, nil
		}
		n, err := c.history.CountDown(ctx, obs.TargetID, downWindow)
		if err != nil {
			return false, fmt.Errorf("count down history: %w", err)
		}
		return n >= downObservations, nil

	case domain.AlertResponseTime:
		up := obs.Uptime
		if up == nil {
			return false, nil
		}
		if rule.ThresholdRespMS <= 0 {
			// Rule misconfigured; a zero threshold would fire on every probe.
			return false, nil
		}
		return up.ResponseTimeMS >= rule.ThresholdRespMS, nil

	case domain.AlertLetsEncryptRenewal:
		cert := obs.Certificate
		if cert == nil || cert.Status == domain.CertError || !cert.LetsEncrypt {
			return false, nil
		}
		return cert.DaysUntilExpiry <= rule.ThresholdDays, nil
	}
	return false, nil
}

// Process runs one observation through auto-resolve and then through every
// rule supplied for the target. Storage errors surface to the caller, which
// retries the whole (idempotent) evaluation; nothing is retried internally.
func (c *Correlator) Process(ctx context.Context, target domain.Target, obs domain.Observation, rules []domain.AlertRule) error {
	c.autoResolve(ctx, target, obs)

	var firstErr error
	for _, rule := range rules {
		ok, err := c.ShouldTrigger(ctx, rule, obs, false, false)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			continue
		}
		if err := c.trigger(ctx, target, rule, obs); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// trigger creates or re-touches the single open alert for (target, type)
// under that pair's lock, then stamps the rule's cooldown clock and emits a
// notification intent.
func (c *Correlator) trigger(ctx context.Context, target domain.Target, rule domain.AlertRule, obs domain.Observation) error {
	lk := c.lock(domain.DedupKey(target.ID, rule.Type))
	lk.Lock()
	defer lk.Unlock()

	now := c.now().UTC()
	alert, err := c.alerts.FindOpen(ctx, target.ID, rule.Type)
	if err != nil {
		return fmt.Errorf("find open alert: %w", err)
	}

	payload := triggerPayload(rule.Type, obs)
	if alert != nil {
		alert.LastOccurredAt = now
		alert.OccurrenceCount++
		alert.Trigger = payload
		if err := c.alerts.Update(ctx, alert); err != nil {
			return fmt.Errorf("update alert: %w", err)
		}
	} else {
		title, message := describe(rule.Type, target, obs, rule)
		alert = &domain.Alert{
			ID:              uuid.NewString(),
			TargetID:        target.ID,
			Type:            rule.Type,
			Severity:        severityFor(rule),
			Title:           title,
			Message:         message,
			Trigger:         payload,
			Threshold:       domain.ThresholdPayload{Days: rule.ThresholdDays, RespMS: rule.ThresholdRespMS},
			FirstDetectedAt: now,
			LastOccurredAt:  now,
			OccurrenceCount: 1,
		}
		if err := c.alerts.Create(ctx, alert); err != nil {
			return fmt.Errorf("create alert: %w", err)
		}
	}

	if err := c.rules.MarkTriggered(ctx, rule.ID, now); err != nil {
		return fmt.Errorf("mark rule triggered: %w", err)
	}

	metrics.AlertsTriggered.WithLabelValues(string(rule.Type)).Inc()
	c.logger.Info("alert_triggered",
		zap.String("alert_id", alert.ID),
		zap.String("target_id", string(target.ID)),
		zap.String("type", string(rule.Type)),
		zap.Int("occurrences", alert.OccurrenceCount),
	)

	if c.notifier != nil {
		c.notifier.Dispatch(ctx, notify.Intent{Alert: *alert, Target: target, Channels: rule.Channels})
	}
	return nil
}

// autoResolve closes open alerts whose underlying condition has recovered.
// It needs no matching rule: recovery is observable from the observation
// alone, even when the rule that opened the alert has since been disabled.
func (c *Correlator) autoResolve(ctx context.Context, target domain.Target, obs domain.Observation) {
	if cert := obs.Certificate; cert != nil && cert.Status == domain.CertValid {
		c.resolveOpen(ctx, target, domain.AlertSSLInvalid, "certificate is valid again", nil)
		if cert.DaysUntilExpiry > resolveSafeDays {
			note := fmt.Sprintf("certificate renewed, %d days remaining", cert.DaysUntilExpiry)
			c.resolveOpen(ctx, target, domain.AlertSSLExpiry, note, nil)
			c.resolveOpen(ctx, target, domain.AlertLetsEncryptRenewal, note, nil)
		}
	}
	if up := obs.Uptime; up != nil && up.Status == domain.UptimeUp {
		c.resolveOpen(ctx, target, domain.AlertUptimeDown, "target is reachable again", nil)
		// "up" only means the target's own limit was met. The response_time
		// alert recovers against the threshold it was opened with, which the
		// alert row snapshots.
		note := fmt.Sprintf("response time is back under the limit (%d ms)", up.ResponseTimeMS)
		c.resolveOpen(ctx, target, domain.AlertResponseTime, note, func(a *domain.Alert) bool {
			return a.Threshold.RespMS <= 0 || up.ResponseTimeMS < a.Threshold.RespMS
		})
	}
}

// resolveOpen closes the open alert for (target, type) if one exists and the
// optional condition accepts it.
func (c *Correlator) resolveOpen(ctx context.Context, target domain.Target, typ domain.AlertType, note string, when func(*domain.Alert) bool) {
	lk := c.lock(domain.DedupKey(target.ID, typ))
	lk.Lock()
	defer lk.Unlock()

	alert, err := c.alerts.FindOpen(ctx, target.ID, typ)
	if err != nil {
		c.logger.Warn("auto_resolve_lookup_failed",
			zap.String("target_id", string(target.ID)),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
		return
	}
	if alert == nil {
		return
	}
	if when != nil && !when(alert) {
		return
	}

	now := c.now().UTC()
	alert.ResolvedAt = &now
	alert.ResolutionNote = "auto-resolved: " + note
	if err := c.alerts.Update(ctx, alert); err != nil {
		c.logger.Warn("auto_resolve_update_failed",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		return
	}

	metrics.AlertsResolved.WithLabelValues(string(typ)).Inc()
	c.logger.Info("alert_auto_resolved",
		zap.String("alert_id", alert.ID),
		zap.String("target_id", string(target.ID)),
		zap.String("type", string(typ)),
	)
}

// Acknowledge marks an open alert as seen without resolving it.
func (c *Correlator) Acknowledge(ctx context.Context, alertID, actor, note string) error {
	alert, err := c.alerts.Get(ctx, alertID)
	if err != nil {
		return err
	}
	if alert == nil {
		return repo.ErrNotFound
	}
	now := c.now().UTC()
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = actor
	alert.AckNote = note
	return c.alerts.Update(ctx, alert)
}

// Resolve closes an alert manually, appending the note to any existing
// acknowledgment note.
func (c *Correlator) Resolve(ctx context.Context, alertID, note string) error {
	alert, err := c.alerts.Get(ctx, alertID)
	if err != nil {
		return err
	}
	if alert == nil {
		return repo.ErrNotFound
	}
	now := c.now().UTC()
	alert.ResolvedAt = &now
	switch {
	case alert.AckNote != "" && note != "":
		alert.ResolutionNote = alert.AckNote + "; " + note
	case note != "":
		alert.ResolutionNote = note
	default:
		alert.ResolutionNote = alert.AckNote
	}
	return c.alerts.Update(ctx, alert)
}
