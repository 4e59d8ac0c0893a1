package status

import (
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/domain"
)

var now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestDaysUntilExpiry_FloorsWholeDays(t *testing.T) {
	cases := []struct {
		expires time.Time
		want    int
	}{
		{now.Add(36 * time.Hour), 1},
		{now.Add(24 * time.Hour), 1},
		{now.Add(23 * time.Hour), 0},
		{now.Add(-1 * time.Hour), -1},
		{now.Add(-49 * time.Hour), -3},
	}
	for _, c := range cases {
		if got := DaysUntilExpiry(now, c.expires); got != c.want {
			t.Fatalf("DaysUntilExpiry(%s): want %d, got %d", c.expires, c.want, got)
		}
	}
}

func TestClassifyCertificate_ExpiredWinsOverInvalid(t *testing.T) {
	past := now.Add(-48 * time.Hour)
	got := ClassifyCertificate(now, past, false, -2, DefaultWarnThresholdDays)
	if got != domain.CertExpired {
		t.Fatalf("want expired, got %s", got)
	}
}

func TestClassifyCertificate_InvalidBeforeExpiring(t *testing.T) {
	soon := now.Add(3 * 24 * time.Hour)
	got := ClassifyCertificate(now, soon, false, 3, DefaultWarnThresholdDays)
	if got != domain.CertInvalid {
		t.Fatalf("want invalid, got %s", got)
	}
}

func TestClassifyCertificate_ThresholdBoundary(t *testing.T) {
	const warn = 14

	at := ClassifyCertificate(now, now.Add(14*24*time.Hour+time.Hour), true, warn, warn)
	if at != domain.CertExpiringSoon {
		t.Fatalf("at threshold: want expiring_soon, got %s", at)
	}

	above := ClassifyCertificate(now, now.Add(16*24*time.Hour), true, warn+1, warn)
	if above != domain.CertValid {
		t.Fatalf("above threshold: want valid, got %s", above)
	}
}

func TestClassifyCertificate_FiveDaysOut(t *testing.T) {
	expires := now.Add(5 * 24 * time.Hour)
	got := ClassifyCertificate(now, expires, true, DaysUntilExpiry(now, expires), DefaultWarnThresholdDays)
	if got != domain.CertExpiringSoon {
		t.Fatalf("want expiring_soon, got %s", got)
	}
}

func TestPriority_FixedOrdering(t *testing.T) {
	want := map[domain.CertStatus]int{
		domain.CertError:        1,
		domain.CertExpired:      2,
		domain.CertExpiringSoon: 3,
		domain.CertInvalid:      4,
		domain.CertValid:        5,
	}
	for s, p := range want {
		if got := Priority(s); got != p {
			t.Fatalf("Priority(%s): want %d, got %d", s, p, got)
		}
	}
}
