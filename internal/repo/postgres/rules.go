package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/domain"
	"github.com/watchpost/watchpost/internal/repo"
)

func (s *Store) Upsert(ctx context.Context, r *domain.AlertRule) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO alert_rules (id, target_id, type, severity, enabled,
			threshold_days, threshold_response_time_ms, channels,
			cooldown_seconds, last_triggered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			severity=EXCLUDED.severity, enabled=EXCLUDED.enabled,
			threshold_days=EXCLUDED.threshold_days,
			threshold_response_time_ms=EXCLUDED.threshold_response_time_ms,
			channels=EXCLUDED.channels, cooldown_seconds=EXCLUDED.cooldown_seconds
	`
	_, err := s.pool.Exec(ctx, q,
		r.ID, string(r.TargetID), string(r.Type), string(r.Severity), r.Enabled,
		r.ThresholdDays, r.ThresholdRespMS, joinChannels(r.Channels),
		int64(r.Cooldown/time.Second), r.LastTriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	return nil
}

func (s *Store) ListByTarget(ctx context.Context, id domain.TargetID) ([]domain.AlertRule, error) {
	const q = `
		SELECT id, target_id, type, severity, enabled, threshold_days,
			threshold_response_time_ms, channels, cooldown_seconds, last_triggered_at
		FROM alert_rules WHERE target_id=$1 ORDER BY id
	`
	rows, err := s.pool.Query(ctx, q, string(id))
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []domain.AlertRule
	for rows.Next() {
		var r domain.AlertRule
		var targetID, typ, sev, channels string
		var cooldownSec int64
		var last *time.Time
		if err := rows.Scan(&r.ID, &targetID, &typ, &sev, &r.Enabled,
			&r.ThresholdDays, &r.ThresholdRespMS, &channels, &cooldownSec, &last); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.TargetID = domain.TargetID(targetID)
		r.Type = domain.AlertType(typ)
		r.Severity = domain.Severity(sev)
		r.Channels = splitChannels(channels)
		r.Cooldown = time.Duration(cooldownSec) * time.Second
		r.LastTriggeredAt = last
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) MarkTriggered(ctx context.Context, ruleID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alert_rules SET last_triggered_at=$2 WHERE id=$1`, ruleID, at)
	if err != nil {
		return fmt.Errorf("mark rule triggered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func joinChannels(cs []domain.ChannelKind) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}

func splitChannels(s string) []domain.ChannelKind {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]domain.ChannelKind, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, domain.ChannelKind(p))
		}
	}
	return out
}
