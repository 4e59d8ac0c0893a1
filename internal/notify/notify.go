// Package notify delivers alert notifications. The correlator emits an
// Intent; the registry fans it out to the channels named on the rule.
// Delivery is best-effort with bounded retries and never blocks alerting.
package notify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/watchpost/watchpost/internal/domain"
)

// Intent is what the correlator hands off: the alert that fired, the target
// it fired for, and which channels the rule routes to.
type Intent struct {
	Alert    domain.Alert
	Target   domain.Target
	Channels []domain.ChannelKind
}

// Channel delivers one notification. Implementations: Slack, Email, Dashboard.
type Channel interface {
	Send(ctx context.Context, it Intent) error
}

// Dispatcher is the correlator-facing interface; *Registry implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, it Intent)
}

// Registry maps channel kinds to implementations.
type Registry struct {
	logger   *zap.Logger
	channels map[domain.ChannelKind]Channel

	// MaxRetries bounds the per-channel delivery retries (default 3).
	MaxRetries uint64
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:     logger,
		channels:   make(map[domain.ChannelKind]Channel),
		MaxRetries: 3,
	}
}

func (r *Registry) Register(kind domain.ChannelKind, ch Channel) {
	r.channels[kind] = ch
}

// Dispatch sends the intent to every requested channel. A failing channel is
// retried with exponential backoff and then logged and skipped; it never
// fails the trigger that produced the intent.
func (r *Registry) Dispatch(ctx context.Context, it Intent) {
	for _, kind := range it.Channels {
		ch, ok := r.channels[kind]
		if !ok {
			r.logger.Warn("notify_channel_unregistered",
				zap.String("channel", string(kind)),
				zap.String("alert_id", it.Alert.ID),
			)
			continue
		}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 200 * time.Millisecond
		bo.MaxElapsedTime = 30 * time.Second
		err := backoff.Retry(func() error {
			return ch.Send(ctx, it)
		}, backoff.WithContext(backoff.WithMaxRetries(bo, r.MaxRetries), ctx))
		if err != nil {
			r.logger.Warn("notify_send_failed",
				zap.String("channel", string(kind)),
				zap.String("alert_id", it.Alert.ID),
				zap.String("target_id", string(it.Target.ID)),
				zap.Error(err),
			)
			continue
		}
		r.logger.Debug("notify_sent",
			zap.String("channel", string(kind)),
			zap.String("alert_id", it.Alert.ID),
		)
	}
}
