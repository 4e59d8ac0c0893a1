package domain

import "time"

// DefaultCooldown is the minimum gap between successive triggers of the same
// rule unless the rule configures its own.
const DefaultCooldown = 24 * time.Hour

// AlertRule is operator-owned configuration describing when to alert for a
// target and type. The correlator only ever writes LastTriggeredAt.
type AlertRule struct {
	ID              string        `json:"id"`
	TargetID        TargetID      `json:"target_id"`
	Type            AlertType     `json:"type"`
	Severity        Severity      `json:"severity,omitempty"`
	Enabled         bool          `json:"enabled"`
	ThresholdDays   int           `json:"threshold_days,omitempty"`
	ThresholdRespMS int64         `json:"threshold_response_time_ms,omitempty"`
	Channels        []ChannelKind `json:"channels,omitempty"`
	Cooldown        time.Duration `json:"cooldown,omitempty"`
	LastTriggeredAt *time.Time    `json:"last_triggered_at,omitempty"`
}

func (r AlertRule) EffectiveCooldown() time.Duration {
	if r.Cooldown <= 0 {
		return DefaultCooldown
	}
	return r.Cooldown
}

// TriggerPayload carries the observation fields that caused a trigger. Only
// the fields relevant to the alert type are filled.
type TriggerPayload struct {
	UptimeStatus    UptimeStatus `json:"uptime_status,omitempty"`
	HTTPStatusCode  *int         `json:"http_status_code,omitempty"`
	ResponseTimeMS  int64        `json:"response_time_ms,omitempty"`
	CertStatus      CertStatus   `json:"cert_status,omitempty"`
	DaysUntilExpiry int          `json:"days_until_expiry,omitempty"`
	Issuer          string       `json:"issuer,omitempty"`
	ValidTo         time.Time    `json:"valid_to,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
}

// ThresholdPayload records the rule limits that were in force at trigger time.
type ThresholdPayload struct {
	Days   int   `json:"days,omitempty"`
	RespMS int64 `json:"response_time_ms,omitempty"`
}

// Alert is the live lifecycle record for a triggered condition. Identity is
// (TargetID, Type): at most one unresolved Alert may exist per pair.
type Alert struct {
	ID              string           `json:"id"`
	TargetID        TargetID         `json:"target_id"`
	Type            AlertType        `json:"type"`
	Severity        Severity         `json:"severity"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	Trigger         TriggerPayload   `json:"trigger"`
	Threshold       ThresholdPayload `json:"threshold"`
	FirstDetectedAt time.Time        `json:"first_detected_at"`
	LastOccurredAt  time.Time        `json:"last_occurred_at"`
	OccurrenceCount int              `json:"occurrence_count"`
	AcknowledgedAt  *time.Time       `json:"acknowledged_at,omitempty"`
	AcknowledgedBy  string           `json:"acknowledged_by,omitempty"`
	AckNote         string           `json:"ack_note,omitempty"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
	ResolutionNote  string           `json:"resolution_note,omitempty"`
}

func (a *Alert) Resolved() bool { return a.ResolvedAt != nil }

// DedupKey is the lock/lookup key enforcing at-most-one-open-alert.
func DedupKey(id TargetID, t AlertType) string {
	return string(id) + "|" + string(t)
}
