// Package targets owns the write path for monitored targets. All mutations
// flow through Service so monitor synchronization stays explicit rather than
// hidden behind storage hooks.
package targets

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/watchpost/watchpost/internal/domain"
	"github.com/watchpost/watchpost/internal/repo"
)

// MonitorSyncPort is notified after every committed target mutation, so the
// monitoring side (schedules, caches) can converge on the new state. A nil
// port is valid and means no synchronization.
type MonitorSyncPort interface {
	TargetChanged(ctx context.Context, t domain.Target)
	TargetRemoved(ctx context.Context, id domain.TargetID)
}

type Service struct {
	store  repo.TargetStore
	sync   MonitorSyncPort
	logger *zap.Logger
}

func NewService(store repo.TargetStore, sync MonitorSyncPort, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, sync: sync, logger: logger}
}

// Create validates and stores a new target, then announces it to the monitor
// sync port. The target's ID is assigned by the store.
func (s *Service) Create(ctx context.Context, t *domain.Target) error {
	if err := validate(t); err != nil {
		return err
	}
	if err := s.store.Add(ctx, t); err != nil {
		return err
	}
	s.logger.Info("target_created",
		zap.String("target_id", string(t.ID)),
		zap.String("url", t.URL),
	)
	if s.sync != nil {
		s.sync.TargetChanged(ctx, *t)
	}
	return nil
}

func (s *Service) Update(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		return fmt.Errorf("target id required")
	}
	if err := validate(t); err != nil {
		return err
	}
	if err := s.store.Update(ctx, t); err != nil {
		return err
	}
	s.logger.Info("target_updated", zap.String("target_id", string(t.ID)))
	if s.sync != nil {
		s.sync.TargetChanged(ctx, *t)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id domain.TargetID) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Info("target_deleted", zap.String("target_id", string(id)))
	if s.sync != nil {
		s.sync.TargetRemoved(ctx, id)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Target, error) {
	return s.store.List(ctx)
}

func validate(t *domain.Target) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("target name required")
	}
	u, err := url.Parse(t.URL)
	if err != nil {
		return fmt.Errorf("target url invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target url must be http or https, got %q", t.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("target url %q has no host", t.URL)
	}
	if t.CheckSSL && u.Scheme != "https" {
		return fmt.Errorf("ssl check requires an https url")
	}
	if t.MaxRedirects < 0 {
		return fmt.Errorf("max redirects must not be negative")
	}
	return nil
}
