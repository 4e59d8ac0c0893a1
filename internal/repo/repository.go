// Package repo defines the persistence ports. Adapters live in subpackages;
// the engine depends only on these CRUD-style interfaces and never embeds
// storage details.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/watchpost/watchpost/internal/domain"
)

var ErrNotFound = errors.New("not found")

type TargetStore interface {
	Add(ctx context.Context, t *domain.Target) error
	Update(ctx context.Context, t *domain.Target) error
	Remove(ctx context.Context, id domain.TargetID) error
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
	List(ctx context.Context) ([]domain.Target, error)
}

type RuleStore interface {
	Upsert(ctx context.Context, r *domain.AlertRule) error
	ListByTarget(ctx context.Context, id domain.TargetID) ([]domain.AlertRule, error)
	// MarkTriggered stamps the rule's last-triggered time; this drives the
	// cooldown for future evaluations of that rule.
	MarkTriggered(ctx context.Context, ruleID string, at time.Time) error
}

type AlertStore interface {
	Create(ctx context.Context, a *domain.Alert) error
	Update(ctx context.Context, a *domain.Alert) error
	Get(ctx context.Context, id string) (*domain.Alert, error)
	// FindOpen returns the single unresolved alert for (target, type), or
	// nil, nil when none exists.
	FindOpen(ctx context.Context, id domain.TargetID, t domain.AlertType) (*domain.Alert, error)
	ListOpen(ctx context.Context) ([]domain.Alert, error)
}
