package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/watchpost/watchpost/internal/domain"
	"github.com/watchpost/watchpost/internal/repo"
)

// AlertStore implements repo.AlertStore on top of the alerts table. The
// partial unique index alerts_open_dedup backs up the correlator's keyed
// locks, so even a racing writer cannot create a second open row.
type AlertStore struct {
	pool *pgxpool.Pool
}

func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

func (s *AlertStore) Create(ctx context.Context, a *domain.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	trigger, err := json.Marshal(a.Trigger)
	if err != nil {
		return fmt.Errorf("marshal trigger payload: %w", err)
	}
	threshold, err := json.Marshal(a.Threshold)
	if err != nil {
		return fmt.Errorf("marshal threshold payload: %w", err)
	}
	const q = `
		INSERT INTO alerts (id, target_id, type, severity, title, message,
			trigger_payload, threshold_payload, first_detected_at,
			last_occurred_at, occurrence_count, acknowledged_at,
			acknowledged_by, ack_note, resolved_at, resolution_note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`
	_, err = s.pool.Exec(ctx, q,
		a.ID, string(a.TargetID), string(a.Type), string(a.Severity), a.Title, a.Message,
		trigger, threshold, a.FirstDetectedAt, a.LastOccurredAt, a.OccurrenceCount,
		a.AcknowledgedAt, a.AcknowledgedBy, a.AckNote, a.ResolvedAt, a.ResolutionNote,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *AlertStore) Update(ctx context.Context, a *domain.Alert) error {
	trigger, err := json.Marshal(a.Trigger)
	if err != nil {
		return fmt.Errorf("marshal trigger payload: %w", err)
	}
	const q = `
		UPDATE alerts SET severity=$2, title=$3, message=$4, trigger_payload=$5,
			last_occurred_at=$6, occurrence_count=$7, acknowledged_at=$8,
			acknowledged_by=$9, ack_note=$10, resolved_at=$11, resolution_note=$12
		WHERE id=$1
	`
	tag, err := s.pool.Exec(ctx, q,
		a.ID, string(a.Severity), a.Title, a.Message, trigger,
		a.LastOccurredAt, a.OccurrenceCount, a.AcknowledgedAt,
		a.AcknowledgedBy, a.AckNote, a.ResolvedAt, a.ResolutionNote,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

const alertColumns = `id, target_id, type, severity, title, message,
	trigger_payload, threshold_payload, first_detected_at, last_occurred_at,
	occurrence_count, acknowledged_at, acknowledged_by, ack_note, resolved_at,
	resolution_note`

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var a domain.Alert
	var targetID, typ, sev string
	var trigger, threshold []byte
	err := row.Scan(&a.ID, &targetID, &typ, &sev, &a.Title, &a.Message,
		&trigger, &threshold, &a.FirstDetectedAt, &a.LastOccurredAt,
		&a.OccurrenceCount, &a.AcknowledgedAt, &a.AcknowledgedBy, &a.AckNote,
		&a.ResolvedAt, &a.ResolutionNote,
	)
	if err != nil {
		return nil, err
	}
	a.TargetID = domain.TargetID(targetID)
	a.Type = domain.AlertType(typ)
	a.Severity = domain.Severity(sev)
	_ = json.Unmarshal(trigger, &a.Trigger)
	_ = json.Unmarshal(threshold, &a.Threshold)
	return &a, nil
}

func (s *AlertStore) Get(ctx context.Context, id string) (*domain.Alert, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id=$1`, id)
	a, err := scanAlert(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *AlertStore) FindOpen(ctx context.Context, id domain.TargetID, t domain.AlertType) (*domain.Alert, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE target_id=$1 AND type=$2 AND resolved_at IS NULL`,
		string(id), string(t))
	a, err := scanAlert(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find open alert: %w", err)
	}
	return a, nil
}

func (s *AlertStore) ListOpen(ctx context.Context) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE resolved_at IS NULL ORDER BY first_detected_at`)
	if err != nil {
		return nil, fmt.Errorf("list open alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
