package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	UptimeProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "watchpost_uptime_probes_total", Help: "uptime probes by resulting status"},
		[]string{"status"})
	CertProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "watchpost_cert_probes_total", Help: "certificate probes by resulting status"},
		[]string{"status"})
	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "watchpost_probe_duration_seconds", Help: "uptime probe response time", Buckets: prometheus.DefBuckets})
	AlertsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "watchpost_alerts_triggered_total", Help: "alert triggers (first and repeat) by type"},
		[]string{"type"})
	AlertsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "watchpost_alerts_resolved_total", Help: "auto-resolved alerts by type"},
		[]string{"type"})
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "watchpost_sweep_duration_seconds", Help: "full sweep duration", Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120}})
)

func init() {
	prometheus.MustRegister(UptimeProbes, CertProbes, ProbeDuration, AlertsTriggered, AlertsResolved, SweepDuration)
}

// Serve exposes /metrics on its own listener. Blocks; run in a goroutine.
func Serve(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics_server_stopped", zap.Error(err))
	}
}
