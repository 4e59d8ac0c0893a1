// Package status holds the pure classification helpers shared by the
// certificate probe and the alert correlator.
package status

import (
	"math"
	"time"

	"github.com/watchpost/watchpost/internal/domain"
)

// DefaultWarnThresholdDays is how close to expiry a certificate may get
// before it is classified as expiring_soon.
const DefaultWarnThresholdDays = 14

// DaysUntilExpiry returns floor(expiresAt - now) in whole days. The result
// is negative once the certificate is already expired; callers that need a
// non-negative display value clamp it themselves.
func DaysUntilExpiry(now, expiresAt time.Time) int {
	return int(math.Floor(expiresAt.Sub(now).Hours() / 24))
}

// ClassifyCertificate maps one certificate observation onto a status.
// Order matters: an expired certificate is expired even if it is also
// invalid for the host.
func ClassifyCertificate(now, expiresAt time.Time, isValid bool, daysUntilExpiry, warnThreshold int) domain.CertStatus {
	if expiresAt.Before(now) {
		return domain.CertExpired
	}
	if !isValid {
		return domain.CertInvalid
	}
	if daysUntilExpiry <= warnThreshold {
		return domain.CertExpiringSoon
	}
	return domain.CertValid
}

// Priority totally orders certificate statuses for display and escalation,
// 1 being the most severe. Note that invalid ranks below expiring_soon; the
// ordering is kept as the product defines it, do not reorder without
// product sign-off.
func Priority(s domain.CertStatus) int {
	switch s {
	case domain.CertError:
		return 1
	case domain.CertExpired:
		return 2
	case domain.CertExpiringSoon:
		return 3
	case domain.CertInvalid:
		return 4
	case domain.CertValid:
		return 5
	}
	return 5
}
