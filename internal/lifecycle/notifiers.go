package lifecycle

import (
	"context"

	lifecycledomain "github.com/smallbiznis/ratecard/internal/lifecycle/domain"
	"github.com/smallbiznis/ratecard/internal/observability/metrics"
	"go.uber.org/zap"
)

// LogNotifier writes every lifecycle event to the structured log so audit
// trails survive even without an external subscriber.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("lifecycle.events")}
}

func (n *LogNotifier) Notify(ctx context.Context, event lifecycledomain.Event) {
	_ = ctx
	n.log.Info(string(event.Type),
		zap.String("org_id", event.OrgID.String()),
		zap.String("rate_type", event.RateType),
		zap.String("rate_table_id", event.RateTableID.String()),
		zap.String("version", event.VersionLabel),
		zap.Time("occurred_at", event.OccurredAt),
	)
}

// MetricsNotifier counts transitions per event type.
type MetricsNotifier struct {
	metrics *metrics.Metrics
}

func NewMetricsNotifier(m *metrics.Metrics) *MetricsNotifier {
	return &MetricsNotifier{metrics: m}
}

func (n *MetricsNotifier) Notify(ctx context.Context, event lifecycledomain.Event) {
	_ = ctx
	n.metrics.LifecycleTransitions.WithLabelValues(string(event.Type)).Inc()
}
