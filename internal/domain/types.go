package domain

// UptimeStatus classifies the outcome of a single uptime probe.
type UptimeStatus string

const (
	UptimeUp              UptimeStatus = "up"
	UptimeDown            UptimeStatus = "down"
	UptimeSlow            UptimeStatus = "slow"
	UptimeContentMismatch UptimeStatus = "content_mismatch"
)

// CertStatus classifies the outcome of a single certificate probe.
type CertStatus string

const (
	CertValid        CertStatus = "valid"
	CertExpiringSoon CertStatus = "expiring_soon"
	CertExpired      CertStatus = "expired"
	CertInvalid      CertStatus = "invalid"
	CertError        CertStatus = "error"
)

// AlertType identifies what condition an AlertRule watches for.
type AlertType string

const (
	AlertSSLExpiry          AlertType = "ssl_expiry"
	AlertSSLInvalid         AlertType = "ssl_invalid"
	AlertUptimeDown         AlertType = "uptime_down"
	AlertResponseTime       AlertType = "response_time"
	AlertLetsEncryptRenewal AlertType = "lets_encrypt_renewal"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ChannelKind names a notification delivery channel.
type ChannelKind string

const (
	ChannelEmail     ChannelKind = "email"
	ChannelDashboard ChannelKind = "dashboard"
	ChannelSlack     ChannelKind = "slack"
)
