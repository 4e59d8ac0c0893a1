package notify

import (
	"context"

	"go.uber.org/zap"
)

// Dashboard is the in-app channel. Open alerts are already queryable through
// the API, so delivery here is an audit log entry the dashboard tails.
type Dashboard struct {
	Logger *zap.Logger
}

func NewDashboard(logger *zap.Logger) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{Logger: logger}
}

func (d *Dashboard) Send(ctx context.Context, it Intent) error {
	d.Logger.Info("dashboard_alert",
		zap.String("alert_id", it.Alert.ID),
		zap.String("target_id", string(it.Target.ID)),
		zap.String("type", string(it.Alert.Type)),
		zap.String("severity", string(it.Alert.Severity)),
		zap.String("title", it.Alert.Title),
		zap.Int("occurrences", it.Alert.OccurrenceCount),
	)
	return nil
}
