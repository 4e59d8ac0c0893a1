package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTarget_EffectiveDefaults(t *testing.T) {
	tgt := Target{URL: "https://example.com"}

	if got := tgt.EffectiveMethod(); got != "GET" {
		t.Fatalf("method: want GET, got %s", got)
	}
	if got := tgt.EffectiveExpectedStatus(); got != 200 {
		t.Fatalf("expected status: want 200, got %d", got)
	}
	if got := tgt.EffectiveMaxRedirects(); got != 5 {
		t.Fatalf("max redirects: want 5, got %d", got)
	}
	if got := tgt.EffectiveMaxResponseTime(); got != 30000 {
		t.Fatalf("max response time: want 30000, got %d", got)
	}
	if got := tgt.EffectiveTimeout(); got != 10*time.Second {
		t.Fatalf("timeout: want 10s, got %s", got)
	}
}

func TestTarget_HostAndPort(t *testing.T) {
	tgt := Target{URL: "https://example.com:8443/health"}
	if got := tgt.Host(); got != "example.com" {
		t.Fatalf("host: want example.com, got %q", got)
	}
	if got := tgt.TLSPort(); got != 8443 {
		t.Fatalf("port: want 8443, got %d", got)
	}

	tgt = Target{URL: "https://example.com/health"}
	if got := tgt.TLSPort(); got != 443 {
		t.Fatalf("default port: want 443, got %d", got)
	}
}

func TestAlertRule_EffectiveCooldown(t *testing.T) {
	r := AlertRule{}
	if got := r.EffectiveCooldown(); got != 24*time.Hour {
		t.Fatalf("default cooldown: want 24h, got %s", got)
	}
	r.Cooldown = time.Hour
	if got := r.EffectiveCooldown(); got != time.Hour {
		t.Fatalf("cooldown: want 1h, got %s", got)
	}
}

func TestDedupKey_DistinguishesTypeAndTarget(t *testing.T) {
	a := DedupKey("t1", AlertSSLExpiry)
	b := DedupKey("t1", AlertSSLInvalid)
	c := DedupKey("t2", AlertSSLExpiry)
	if a == b || a == c {
		t.Fatalf("keys should differ: %q %q %q", a, b, c)
	}
}

func TestAlert_JSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	code := 503
	want := Alert{
		ID:              "a1",
		TargetID:        "t1",
		Type:            AlertUptimeDown,
		Severity:        SeverityCritical,
		Title:           "Target down",
		Message:         "HTTP 503 Server Error",
		Trigger:         TriggerPayload{UptimeStatus: UptimeDown, HTTPStatusCode: &code},
		FirstDetectedAt: now,
		LastOccurredAt:  now,
		OccurrenceCount: 1,
	}
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Alert
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != want.ID || got.Type != want.Type || got.OccurrenceCount != 1 {
		t.Fatalf("mismatch after round-trip:\nwant=%+v\ngot =%+v", want, got)
	}
	if got.Trigger.HTTPStatusCode == nil || *got.Trigger.HTTPStatusCode != 503 {
		t.Fatalf("trigger status code lost: %+v", got.Trigger)
	}
	if got.Resolved() {
		t.Fatalf("alert should not be resolved")
	}
}
