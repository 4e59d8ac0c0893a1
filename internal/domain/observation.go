package domain

import "time"

// UptimeObservation is the result of one uptime probe. It is produced by the
// probe and consumed once by the correlator; the probe keeps no state.
type UptimeObservation struct {
	TargetID           TargetID     `json:"target_id"`
	Status             UptimeStatus `json:"status"`
	HTTPStatusCode     *int         `json:"http_status_code,omitempty"`
	ResponseTimeMS     int64        `json:"response_time_ms"`
	ResponseSizeBytes  int64        `json:"response_size_bytes"`
	ContentCheckPassed bool         `json:"content_check_passed"`
	ContentCheckReason string       `json:"content_check_reason,omitempty"`
	ErrorMessage       string       `json:"error_message,omitempty"`
	FinalURL           string       `json:"final_url,omitempty"`
	CheckedAt          time.Time    `json:"checked_at"`
}

// SecurityAnalysis describes the public key and signature of a certificate.
type SecurityAnalysis struct {
	KeyAlgorithm  string `json:"key_algorithm,omitempty"`
	KeySizeBits   int    `json:"key_size_bits,omitempty"`
	WeakKey       bool   `json:"weak_key"`
	WeakSignature bool   `json:"weak_signature"`
	Score         int    `json:"score"` // 0..100
}

// RiskAssessment summarizes how urgently a certificate needs attention.
type RiskAssessment struct {
	Level           RiskLevel `json:"level"`
	Score           int       `json:"score"` // 0..100
	Issues          []string  `json:"issues,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

// CertificateObservation is the result of one TLS certificate probe.
// On status "error" every analytic field is zero and ErrorMessage carries
// the connection or parse failure.
type CertificateObservation struct {
	TargetID           TargetID          `json:"target_id,omitempty"`
	Host               string            `json:"host"`
	Status             CertStatus        `json:"status"`
	Issuer             string            `json:"issuer,omitempty"`
	Subject            string            `json:"subject,omitempty"`
	SerialNumber       string            `json:"serial_number,omitempty"`
	SignatureAlgorithm string            `json:"signature_algorithm,omitempty"`
	ValidFrom          time.Time         `json:"valid_from,omitempty"`
	ValidTo            time.Time         `json:"valid_to,omitempty"`
	DaysUntilExpiry    int               `json:"days_until_expiry"` // negative when already expired
	SANs               []string          `json:"sans,omitempty"`
	Wildcard           bool              `json:"wildcard"`
	DomainCovered      bool              `json:"domain_covered"`
	LetsEncrypt        bool              `json:"lets_encrypt"`
	Security           *SecurityAnalysis `json:"security,omitempty"`
	Risk               *RiskAssessment   `json:"risk,omitempty"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	CheckedAt          time.Time         `json:"checked_at"`
}

// Observation normalizes either probe result for the correlator, which never
// reaches back into probe internals. Exactly one of Uptime/Certificate is set.
type Observation struct {
	TargetID    TargetID
	Uptime      *UptimeObservation
	Certificate *CertificateObservation
}

func FromUptime(o UptimeObservation) Observation {
	return Observation{TargetID: o.TargetID, Uptime: &o}
}

func FromCertificate(o CertificateObservation) Observation {
	return Observation{TargetID: o.TargetID, Certificate: &o}
}
