package correlator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/domain"
	"github.com/watchpost/watchpost/internal/history"
	"github.com/watchpost/watchpost/internal/notify"
	"github.com/watchpost/watchpost/internal/repo/memory"
)

type capturingNotifier struct {
	mu      sync.Mutex
	intents []notify.Intent
}

func (n *capturingNotifier) Dispatch(ctx context.Context, it notify.Intent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, it)
}

func (n *capturingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.intents)
}

type fixture struct {
	c        *Correlator
	rules    *memory.Store
	alerts   *memory.AlertStore
	hist     *history.Memory
	notifier *capturingNotifier
	target   domain.Target
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rules := memory.New()
	alerts := memory.NewAlertStore()
	hist := history.NewMemory()
	notifier := &capturingNotifier{}
	c := New(rules, alerts, hist, notifier, nil)
	return &fixture{
		c:        c,
		rules:    rules,
		alerts:   alerts,
		hist:     hist,
		notifier: notifier,
		target: domain.Target{
			ID:   "t1",
			Name: "Example",
			URL:  "https://example.com",
		},
	}
}

func (f *fixture) addRule(t *testing.T, r domain.AlertRule) domain.AlertRule {
	t.Helper()
	if err := f.rules.Upsert(context.Background(), &r); err != nil {
		t.Fatalf("upsert rule: %v", err)
	}
	return r
}

func certObs(status domain.CertStatus, days int) domain.Observation {
	return domain.FromCertificate(domain.CertificateObservation{
		TargetID:        "t1",
		Host:            "example.com",
		Status:          status,
		DaysUntilExpiry: days,
		Issuer:          "R3",
		ValidTo:         time.Now().AddDate(0, 0, days),
		CheckedAt:       time.Now(),
	})
}

func uptimeObs(status domain.UptimeStatus, respMS int64) domain.Observation {
	return domain.FromUptime(domain.UptimeObservation{
		TargetID:       "t1",
		Status:         status,
		ResponseTimeMS: respMS,
		CheckedAt:      time.Now(),
	})
}

func TestProcessDeduplicatesOpenAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.addRule(t, domain.AlertRule{
		TargetID:      "t1",
		Type:          domain.AlertSSLExpiry,
		Enabled:       true,
		ThresholdDays: 7,
		Cooldown:      time.Minute, // short cooldown so re-triggers are possible
		Channels:      []domain.ChannelKind{domain.ChannelDashboard},
	})

	obs := certObs(domain.CertExpiringSoon, 5)
	if err := f.c.Process(ctx, f.target, obs, []domain.AlertRule{rule}); err != nil {
		t.Fatalf("first process: %v", err)
	}

	// The second pass must update the open alert, never open a second one.
	rules, err := f.rules.ListByTarget(ctx, "t1")
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	f.c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if err := f.c.Process(ctx, f.target, obs, rules); err != nil {
		t.Fatalf("second process: %v", err)
	}

	open, err := f.alerts.ListOpen(ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("want 1 open alert, got %d", len(open))
	}
	if open[0].OccurrenceCount != 2 {
		t.Fatalf("want occurrence count 2, got %d", open[0].OccurrenceCount)
	}
	if f.notifier.count() != 2 {
		t.Fatalf("want 2 notifications, got %d", f.notifier.count())
	}
}

func TestShouldTriggerCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	last := time.Now().Add(-23 * time.Hour)
	rule := domain.AlertRule{
		TargetID:        "t1",
		Type:            domain.AlertSSLExpiry,
		Enabled:         true,
		ThresholdDays:   14,
		LastTriggeredAt: &last,
	}
	obs := certObs(domain.CertExpiringSoon, 5)

	ok, err := f.c.ShouldTrigger(ctx, rule, obs, false, false)
	if err != nil {
		t.Fatalf("should trigger: %v", err)
	}
	if ok {
		t.Fatal("rule triggered 23h after last trigger, inside default 24h cooldown")
	}

	older := time.Now().Add(-25 * time.Hour)
	rule.LastTriggeredAt = &older
	ok, err = f.c.ShouldTrigger(ctx, rule, obs, false, false)
	if err != nil {
		t.Fatalf("should trigger: %v", err)
	}
	if !ok {
		t.Fatal("rule did not trigger 25h after last trigger, outside cooldown")
	}
}

func TestShouldTriggerBypassFlags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	last := time.Now().Add(-time.Hour)
	rule := domain.AlertRule{
		TargetID:        "t1",
		Type:            domain.AlertSSLExpiry,
		Enabled:         false,
		ThresholdDays:   14,
		LastTriggeredAt: &last,
	}
	obs := certObs(domain.CertExpiringSoon, 5)

	if ok, _ := f.c.ShouldTrigger(ctx, rule, obs, false, false); ok {
		t.Fatal("disabled rule triggered")
	}
	if ok, _ := f.c.ShouldTrigger(ctx, rule, obs, true, true); !ok {
		t.Fatal("bypass flags did not override disabled + cooldown")
	}
}

func TestShouldTriggerResponseTimeInclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := domain.AlertRule{
		TargetID:        "t1",
		Type:            domain.AlertResponseTime,
		Enabled:         true,
		ThresholdRespMS: 5000,
	}

	if ok, _ := f.c.ShouldTrigger(ctx, rule, uptimeObs(domain.UptimeSlow, 5000), false, false); !ok {
		t.Fatal("response time equal to threshold should trigger")
	}
	if ok, _ := f.c.ShouldTrigger(ctx, rule, uptimeObs(domain.UptimeUp, 4999), false, false); ok {
		t.Fatal("response time below threshold should not trigger")
	}
}

func TestExpiredCertAlertOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obs := certObs(domain.CertExpired, -3)

	invalid := domain.AlertRule{TargetID: "t1", Type: domain.AlertSSLInvalid, Enabled: true}
	if ok, _ := f.c.ShouldTrigger(ctx, invalid, obs, false, false); ok {
		t.Fatal("ssl_invalid triggered on an expired certificate")
	}

	// ssl_expiry with threshold 0 still catches it: negative days <= 0.
	expiry := domain.AlertRule{TargetID: "t1", Type: domain.AlertSSLExpiry, Enabled: true, ThresholdDays: 0}
	if ok, _ := f.c.ShouldTrigger(ctx, expiry, obs, false, false); !ok {
		t.Fatal("ssl_expiry did not trigger on an expired certificate")
	}
}

func TestSSLInvalidOnProbeError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obs := domain.FromCertificate(domain.CertificateObservation{
		TargetID:     "t1",
		Host:         "example.com",
		Status:       domain.CertError,
		ErrorMessage: "tls connect failed: connection refused",
	})

	invalid := domain.AlertRule{TargetID: "t1", Type: domain.AlertSSLInvalid, Enabled: true}
	if ok, _ := f.c.ShouldTrigger(ctx, invalid, obs, false, false); !ok {
		t.Fatal("ssl_invalid did not trigger on probe error")
	}

	// Expiry-family rules must stay quiet on errors: days is meaningless.
	expiry := domain.AlertRule{TargetID: "t1", Type: domain.AlertSSLExpiry, Enabled: true, ThresholdDays: 14}
	if ok, _ := f.c.ShouldTrigger(ctx, expiry, obs, false, false); ok {
		t.Fatal("ssl_expiry triggered on probe error")
	}
}

func TestUptimeDownRequiresRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := domain.AlertRule{TargetID: "t1", Type: domain.AlertUptimeDown, Enabled: true}
	obs := uptimeObs(domain.UptimeDown, 0)

	record := func(status domain.UptimeStatus, ago time.Duration) {
		f.hist.Record(ctx, history.Sample{TargetID: "t1", Status: status, At: time.Now().Add(-ago)})
	}

	record(domain.UptimeDown, 10*time.Minute)
	record(domain.UptimeDown, 5*time.Minute)
	if ok, _ := f.c.ShouldTrigger(ctx, rule, obs, false, false); ok {
		t.Fatal("triggered with only 2 down samples in the window")
	}

	record(domain.UptimeDown, time.Minute)
	if ok, _ := f.c.ShouldTrigger(ctx, rule, obs, false, false); !ok {
		t.Fatal("did not trigger with 3 down samples in the window")
	}
}

func TestUptimeDownIgnoresStaleFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := domain.AlertRule{TargetID: "t1", Type: domain.AlertUptimeDown, Enabled: true}

	// Two recent downs plus one outside the trailing hour: not enough.
	f.hist.Record(ctx, history.Sample{TargetID: "t1", Status: domain.UptimeDown, At: time.Now().Add(-90 * time.Minute)})
	f.hist.Record(ctx, history.Sample{TargetID: "t1", Status: domain.UptimeDown, At: time.Now().Add(-10 * time.Minute)})
	f.hist.Record(ctx, history.Sample{TargetID: "t1", Status: domain.UptimeDown, At: time.Now().Add(-time.Minute)})

	if ok, _ := f.c.ShouldTrigger(ctx, rule, uptimeObs(domain.UptimeDown, 0), false, false); ok {
		t.Fatal("stale down sample counted toward the window")
	}
}

func TestLetsEncryptRenewalScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := domain.AlertRule{TargetID: "t1", Type: domain.AlertLetsEncryptRenewal, Enabled: true, ThresholdDays: 7}

	obs := certObs(domain.CertExpiringSoon, 5)
	obs.Certificate.LetsEncrypt = true
	if ok, _ := f.c.ShouldTrigger(ctx, rule, obs, false, false); !ok {
		t.Fatal("LE cert 5 days from expiry with threshold 7 should trigger")
	}

	obs.Certificate.LetsEncrypt = false
	if ok, _ := f.c.ShouldTrigger(ctx, rule, obs, false, false); ok {
		t.Fatal("non-LE cert triggered the renewal rule")
	}
}

func TestAutoResolveRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.addRule(t, domain.AlertRule{
		TargetID:      "t1",
		Type:          domain.AlertSSLExpiry,
		Enabled:       true,
		ThresholdDays: 14,
	})

	if err := f.c.Process(ctx, f.target, certObs(domain.CertExpiringSoon, 5), []domain.AlertRule{rule}); err != nil {
		t.Fatalf("process: %v", err)
	}
	open, _ := f.alerts.ListOpen(ctx)
	if len(open) != 1 {
		t.Fatalf("want 1 open alert after trigger, got %d", len(open))
	}

	// Renewal with comfortable headroom closes the alert.
	if err := f.c.Process(ctx, f.target, certObs(domain.CertValid, 89), nil); err != nil {
		t.Fatalf("process renewed: %v", err)
	}
	open, _ = f.alerts.ListOpen(ctx)
	if len(open) != 0 {
		t.Fatalf("want 0 open alerts after renewal, got %d", len(open))
	}

	got, err := f.alerts.Get(ctx, f.notifier.intents[0].Alert.ID)
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if !got.Resolved() {
		t.Fatal("alert not marked resolved")
	}
	if !strings.HasPrefix(got.ResolutionNote, "auto-resolved:") {
		t.Fatalf("resolution note %q lacks auto-resolved prefix", got.ResolutionNote)
	}

	// A further healthy observation must not reopen or touch anything.
	if err := f.c.Process(ctx, f.target, certObs(domain.CertValid, 89), nil); err != nil {
		t.Fatalf("process healthy: %v", err)
	}
	open, _ = f.alerts.ListOpen(ctx)
	if len(open) != 0 {
		t.Fatalf("healthy observation reopened alerts: %d open", len(open))
	}
}

func TestAutoResolveNeedsHeadroom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.addRule(t, domain.AlertRule{
		TargetID:      "t1",
		Type:          domain.AlertSSLExpiry,
		Enabled:       true,
		ThresholdDays: 14,
	})

	if err := f.c.Process(ctx, f.target, certObs(domain.CertExpiringSoon, 5), []domain.AlertRule{rule}); err != nil {
		t.Fatalf("process: %v", err)
	}

	// Valid but only 20 days out: inside the 30-day safety margin, stays open.
	if err := f.c.Process(ctx, f.target, certObs(domain.CertValid, 20), nil); err != nil {
		t.Fatalf("process: %v", err)
	}
	open, _ := f.alerts.ListOpen(ctx)
	if len(open) != 1 {
		t.Fatalf("alert resolved without renewal headroom: %d open", len(open))
	}
}

func TestAutoResolveResponseTimeChecksRuleThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.addRule(t, domain.AlertRule{
		TargetID:        "t1",
		Type:            domain.AlertResponseTime,
		Enabled:         true,
		ThresholdRespMS: 1000,
	})

	// Up at 5000 ms against a 1000 ms rule opens the alert.
	if err := f.c.Process(ctx, f.target, uptimeObs(domain.UptimeUp, 5000), []domain.AlertRule{rule}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if open, _ := f.alerts.ListOpen(ctx); len(open) != 1 {
		t.Fatalf("want 1 open alert, got %d", len(open))
	}

	// Still up, still slow: the alert must survive the next sweeps even while
	// the cooldown keeps the rule from re-triggering.
	rules, err := f.rules.ListByTarget(ctx, "t1")
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	f.c.now = func() time.Time { return time.Now().Add(5 * time.Minute) }
	if err := f.c.Process(ctx, f.target, uptimeObs(domain.UptimeUp, 5000), rules); err != nil {
		t.Fatalf("process: %v", err)
	}
	if open, _ := f.alerts.ListOpen(ctx); len(open) != 1 {
		t.Fatalf("alert resolved while the target still answers over the rule threshold: %d open", len(open))
	}

	// Only a measurement under the rule threshold recovers it.
	if err := f.c.Process(ctx, f.target, uptimeObs(domain.UptimeUp, 500), rules); err != nil {
		t.Fatalf("process: %v", err)
	}
	if open, _ := f.alerts.ListOpen(ctx); len(open) != 0 {
		t.Fatalf("fast observation did not resolve: %d open", len(open))
	}
}

func TestResponseTimeZeroThresholdNeverTriggers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := domain.AlertRule{
		TargetID: "t1",
		Type:     domain.AlertResponseTime,
		Enabled:  true,
		// ThresholdRespMS left zero: misconfigured, must stay silent.
	}

	for _, ms := range []int64{0, 1, 5000} {
		if ok, _ := f.c.ShouldTrigger(ctx, rule, uptimeObs(domain.UptimeUp, ms), false, false); ok {
			t.Fatalf("zero-threshold rule triggered at %d ms", ms)
		}
	}
}

func TestAutoResolveUptime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.addRule(t, domain.AlertRule{
		TargetID: "t1",
		Type:     domain.AlertUptimeDown,
		Enabled:  true,
	})

	for i := 0; i < 3; i++ {
		f.hist.Record(ctx, history.Sample{TargetID: "t1", Status: domain.UptimeDown})
	}
	if err := f.c.Process(ctx, f.target, uptimeObs(domain.UptimeDown, 0), []domain.AlertRule{rule}); err != nil {
		t.Fatalf("process down: %v", err)
	}
	if open, _ := f.alerts.ListOpen(ctx); len(open) != 1 {
		t.Fatalf("want 1 open alert, got %d", len(open))
	}

	if err := f.c.Process(ctx, f.target, uptimeObs(domain.UptimeUp, 120), nil); err != nil {
		t.Fatalf("process up: %v", err)
	}
	if open, _ := f.alerts.ListOpen(ctx); len(open) != 0 {
		t.Fatalf("uptime recovery did not resolve: %d open", len(open))
	}
}

func TestAcknowledgeAndResolveNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alert := &domain.Alert{
		TargetID:        "t1",
		Type:            domain.AlertUptimeDown,
		Severity:        domain.SeverityCritical,
		Title:           "Example is down",
		FirstDetectedAt: time.Now().UTC(),
		LastOccurredAt:  time.Now().UTC(),
		OccurrenceCount: 1,
	}
	if err := f.alerts.Create(ctx, alert); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.c.Acknowledge(ctx, alert.ID, "ops@example.com", "looking into it"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	got, _ := f.alerts.Get(ctx, alert.ID)
	if got.AcknowledgedAt == nil || got.AcknowledgedBy != "ops@example.com" {
		t.Fatalf("ack fields not set: %+v", got)
	}
	if got.Resolved() {
		t.Fatal("acknowledge resolved the alert")
	}

	if err := f.c.Resolve(ctx, alert.ID, "restarted the backend"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, _ = f.alerts.Get(ctx, alert.ID)
	if !got.Resolved() {
		t.Fatal("resolve did not close the alert")
	}
	want := "looking into it; restarted the backend"
	if got.ResolutionNote != want {
		t.Fatalf("resolution note %q, want %q", got.ResolutionNote, want)
	}
}

func TestResolveUnknownAlert(t *testing.T) {
	f := newFixture(t)
	if err := f.c.Resolve(context.Background(), "no-such-id", "note"); err == nil {
		t.Fatal("resolving unknown alert should fail")
	}
}

func TestTriggerStampsRuleCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.addRule(t, domain.AlertRule{
		TargetID:      "t1",
		Type:          domain.AlertSSLExpiry,
		Enabled:       true,
		ThresholdDays: 14,
	})

	if err := f.c.Process(ctx, f.target, certObs(domain.CertExpiringSoon, 5), []domain.AlertRule{rule}); err != nil {
		t.Fatalf("process: %v", err)
	}

	// Immediately re-processing with the refreshed rule must be suppressed by
	// the default cooldown.
	rules, err := f.rules.ListByTarget(ctx, "t1")
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if rules[0].LastTriggeredAt == nil {
		t.Fatal("trigger did not stamp LastTriggeredAt")
	}
	if err := f.c.Process(ctx, f.target, certObs(domain.CertExpiringSoon, 5), rules); err != nil {
		t.Fatalf("process: %v", err)
	}
	open, _ := f.alerts.ListOpen(ctx)
	if open[0].OccurrenceCount != 1 {
		t.Fatalf("cooldown did not suppress re-trigger: occurrences %d", open[0].OccurrenceCount)
	}
}

func TestDefaultSeverities(t *testing.T) {
	cases := []struct {
		rule domain.AlertRule
		want domain.Severity
	}{
		{domain.AlertRule{Type: domain.AlertSSLExpiry}, domain.SeverityWarning},
		{domain.AlertRule{Type: domain.AlertSSLInvalid}, domain.SeverityCritical},
		{domain.AlertRule{Type: domain.AlertUptimeDown}, domain.SeverityCritical},
		{domain.AlertRule{Type: domain.AlertResponseTime}, domain.SeverityWarning},
		{domain.AlertRule{Type: domain.AlertLetsEncryptRenewal}, domain.SeverityInfo},
		{domain.AlertRule{Type: domain.AlertUptimeDown, Severity: domain.SeverityInfo}, domain.SeverityInfo},
	}
	for _, tc := range cases {
		if got := severityFor(tc.rule); got != tc.want {
			t.Fatalf("severityFor(%s/%s) = %s, want %s", tc.rule.Type, tc.rule.Severity, got, tc.want)
		}
	}
}
