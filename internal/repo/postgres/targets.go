package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/watchpost/watchpost/internal/domain"
	"github.com/watchpost/watchpost/internal/repo"
)

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	const q = `
		INSERT INTO targets (id, name, url, method, expected_status, timeout_ms,
			follow_redirects, max_redirects, expected_content, forbidden_content,
			max_response_time_ms, check_uptime, check_ssl, render_js, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`
	_, err := s.pool.Exec(ctx, q,
		string(t.ID), t.Name, t.URL, t.Method, t.ExpectedStatus, t.Timeout.Milliseconds(),
		t.FollowRedirects, t.MaxRedirects, t.ExpectedContent, t.ForbiddenContent,
		t.MaxResponseTime, t.CheckUptime, t.CheckSSL, t.RenderJS, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	const q = `
		UPDATE targets SET name=$2, url=$3, method=$4, expected_status=$5,
			timeout_ms=$6, follow_redirects=$7, max_redirects=$8,
			expected_content=$9, forbidden_content=$10, max_response_time_ms=$11,
			check_uptime=$12, check_ssl=$13, render_js=$14
		WHERE id=$1
	`
	tag, err := s.pool.Exec(ctx, q,
		string(t.ID), t.Name, t.URL, t.Method, t.ExpectedStatus, t.Timeout.Milliseconds(),
		t.FollowRedirects, t.MaxRedirects, t.ExpectedContent, t.ForbiddenContent,
		t.MaxResponseTime, t.CheckUptime, t.CheckSSL, t.RenderJS,
	)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, id domain.TargetID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id=$1`, string(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

const targetColumns = `id, name, url, method, expected_status, timeout_ms,
	follow_redirects, max_redirects, expected_content, forbidden_content,
	max_response_time_ms, check_uptime, check_ssl, render_js, created_at`

func scanTarget(row pgx.Row) (*domain.Target, error) {
	var t domain.Target
	var id string
	var timeoutMS int64
	err := row.Scan(&id, &t.Name, &t.URL, &t.Method, &t.ExpectedStatus, &timeoutMS,
		&t.FollowRedirects, &t.MaxRedirects, &t.ExpectedContent, &t.ForbiddenContent,
		&t.MaxResponseTime, &t.CheckUptime, &t.CheckSSL, &t.RenderJS, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ID = domain.TargetID(id)
	t.Timeout = time.Duration(timeoutMS) * time.Millisecond
	return &t, nil
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+targetColumns+` FROM targets WHERE id=$1`, string(id))
	t, err := scanTarget(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get target: %w", err)
	}
	return t, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
