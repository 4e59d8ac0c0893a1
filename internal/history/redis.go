package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/watchpost/watchpost/internal/domain"
)

// maxSamplesPerTarget bounds each target's history list; old entries are
// trimmed on every write.
const maxSamplesPerTarget = 1000

// Redis stores each target's samples as a capped list of JSON records, so
// several watchpost nodes can share one trailing-window view.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func historyKey(id domain.TargetID) string {
	return fmt.Sprintf("target:%s:history", id)
}

func (r *Redis) Record(ctx context.Context, s Sample) error {
	if s.At.IsZero() {
		s.At = time.Now().UTC()
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}
	key := historyKey(s.TargetID)
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	if err := r.rdb.LTrim(ctx, key, -maxSamplesPerTarget, -1).Err(); err != nil {
		return fmt.Errorf("ltrim %s: %w", key, err)
	}
	return nil
}

func (r *Redis) CountDown(ctx context.Context, id domain.TargetID, window time.Duration) (int, error) {
	entries, err := r.rdb.LRange(ctx, historyKey(id), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("lrange %s: %w", historyKey(id), err)
	}
	cutoff := time.Now().Add(-window)
	n := 0
	for _, e := range entries {
		var s Sample
		if err := json.Unmarshal([]byte(e), &s); err != nil {
			continue // skip malformed entries rather than failing the query
		}
		if s.Status == domain.UptimeDown && !s.At.Before(cutoff) {
			n++
		}
	}
	return n, nil
}
