package correlator

import (
	"fmt"

	"github.com/watchpost/watchpost/internal/domain"
)

// severityFor resolves the alert severity: the rule's explicit severity wins,
// otherwise the type's conventional default applies.
func severityFor(rule domain.AlertRule) domain.Severity {
	if rule.Severity != "" {
		return rule.Severity
	}
	switch rule.Type {
	case domain.AlertSSLInvalid, domain.AlertUptimeDown:
		return domain.SeverityCritical
	case domain.AlertLetsEncryptRenewal:
		return domain.SeverityInfo
	default:
		return domain.SeverityWarning
	}
}

// describe builds the human-facing title and message for a fresh alert.
// Re-occurrences keep the original text; only the trigger payload refreshes.
func describe(typ domain.AlertType, target domain.Target, obs domain.Observation, rule domain.AlertRule) (title, message string) {
	switch typ {
	case domain.AlertSSLExpiry:
		cert := obs.Certificate
		title = fmt.Sprintf("Certificate for %s expires in %d days", cert.Host, cert.DaysUntilExpiry)
		if cert.DaysUntilExpiry < 0 {
			title = fmt.Sprintf("Certificate for %s expired %d days ago", cert.Host, -cert.DaysUntilExpiry)
		}
		message = fmt.Sprintf("The TLS certificate for %s is valid until %s (threshold: %d days). Issuer: %s.",
			cert.Host, cert.ValidTo.Format("2006-01-02"), rule.ThresholdDays, cert.Issuer)

	case domain.AlertSSLInvalid:
		cert := obs.Certificate
		title = fmt.Sprintf("Certificate for %s is invalid", cert.Host)
		if cert.Status == domain.CertError {
			message = fmt.Sprintf("The TLS certificate for %s could not be checked: %s", cert.Host, cert.ErrorMessage)
		} else {
			message = fmt.Sprintf("The TLS certificate presented by %s does not cover the host or failed validation. Subject: %s.",
				cert.Host, cert.Subject)
		}

	case domain.AlertUptimeDown:
		title = fmt.Sprintf("%s is down", target.Name)
		up := obs.Uptime
		switch {
		case up.ErrorMessage != "":
			message = fmt.Sprintf("%s failed its uptime check: %s", target.URL, up.ErrorMessage)
		case up.HTTPStatusCode != nil:
			message = fmt.Sprintf("%s failed its uptime check with HTTP %d.", target.URL, *up.HTTPStatusCode)
		default:
			message = fmt.Sprintf("%s failed its uptime check.", target.URL)
		}

	case domain.AlertResponseTime:
		up := obs.Uptime
		title = fmt.Sprintf("%s is responding slowly", target.Name)
		message = fmt.Sprintf("%s answered in %d ms, at or above the %d ms limit.",
			target.URL, up.ResponseTimeMS, rule.ThresholdRespMS)

	case domain.AlertLetsEncryptRenewal:
		cert := obs.Certificate
		title = fmt.Sprintf("Let's Encrypt certificate for %s needs renewal", cert.Host)
		message = fmt.Sprintf("The Let's Encrypt certificate for %s expires in %d days (on %s). Check the ACME renewal automation.",
			cert.Host, cert.DaysUntilExpiry, cert.ValidTo.Format("2006-01-02"))
	}
	return title, message
}

// triggerPayload snapshots the observation fields that justify the trigger.
func triggerPayload(typ domain.AlertType, obs domain.Observation) domain.TriggerPayload {
	var p domain.TriggerPayload
	switch typ {
	case domain.AlertUptimeDown, domain.AlertResponseTime:
		if up := obs.Uptime; up != nil {
			p.UptimeStatus = up.Status
			p.HTTPStatusCode = up.HTTPStatusCode
			p.ResponseTimeMS = up.ResponseTimeMS
			p.ErrorMessage = up.ErrorMessage
		}
	case domain.AlertSSLExpiry, domain.AlertSSLInvalid, domain.AlertLetsEncryptRenewal:
		if cert := obs.Certificate; cert != nil {
			p.CertStatus = cert.Status
			p.DaysUntilExpiry = cert.DaysUntilExpiry
			p.Issuer = cert.Issuer
			p.ValidTo = cert.ValidTo
			p.ErrorMessage = cert.ErrorMessage
		}
	}
	return p
}
