// Package history is the rolling record of recent uptime samples that the
// correlator's uptime_down predicate consults ("N down observations in the
// trailing hour"). The engine queries it but does not own long-term result
// storage.
package history

import (
	"context"
	"time"

	"github.com/watchpost/watchpost/internal/domain"
)

// Sample is one uptime observation reduced to what window queries need.
type Sample struct {
	TargetID       domain.TargetID     `json:"target_id"`
	Status         domain.UptimeStatus `json:"status"`
	ResponseTimeMS int64               `json:"response_time_ms"`
	At             time.Time           `json:"at"`
}

type Store interface {
	Record(ctx context.Context, s Sample) error
	// CountDown returns how many samples with status down were recorded for
	// the target within the trailing window.
	CountDown(ctx context.Context, id domain.TargetID, window time.Duration) (int, error)
}
