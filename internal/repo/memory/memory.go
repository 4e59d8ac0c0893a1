// Package memory holds the in-process adapters for the repo ports. They
// back tests and single-node deployments without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/domain"
	"github.com/watchpost/watchpost/internal/repo"
)

// Store implements repo.TargetStore and repo.RuleStore.
type Store struct {
	mu      sync.RWMutex
	targets map[domain.TargetID]*domain.Target
	rules   map[string]*domain.AlertRule
}

func New() *Store {
	return &Store{
		targets: make(map[domain.TargetID]*domain.Target),
		rules:   make(map[string]*domain.AlertRule),
	}
}

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	s.targets[t.ID] = &cp
	return nil
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.targets[t.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *t
	s.targets[t.ID] = &cp
	return nil
}

func (s *Store) Remove(ctx context.Context, id domain.TargetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.targets[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.targets, id)
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Target, 0, len(s.targets))
	for _, t := range s.targets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Upsert(ctx context.Context, r *domain.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

func (s *Store) ListByTarget(ctx context.Context, id domain.TargetID) ([]domain.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AlertRule, 0, 4)
	for _, r := range s.rules {
		if r.TargetID == id {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) MarkTriggered(ctx context.Context, ruleID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleID]
	if !ok {
		return repo.ErrNotFound
	}
	ts := at
	r.LastTriggeredAt = &ts
	return nil
}

// AlertStore implements repo.AlertStore.
type AlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*domain.Alert
}

func NewAlertStore() *AlertStore {
	return &AlertStore{alerts: make(map[string]*domain.Alert)}
}

func (s *AlertStore) Create(ctx context.Context, a *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	s.alerts[a.ID] = &cp
	return nil
}

func (s *AlertStore) Update(ctx context.Context, a *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *a
	s.alerts[a.ID] = &cp
	return nil
}

func (s *AlertStore) Get(ctx context.Context, id string) (*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *AlertStore) FindOpen(ctx context.Context, id domain.TargetID, t domain.AlertType) (*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.alerts {
		if a.TargetID == id && a.Type == t && a.ResolvedAt == nil {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *AlertStore) ListOpen(ctx context.Context) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.ResolvedAt == nil {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstDetectedAt.Before(out[j].FirstDetectedAt) })
	return out, nil
}
