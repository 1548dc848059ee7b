package deviceflow

import "github.com/prometheus/client_golang/prometheus"

var (
	pollAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_flow_poll_attempts_total",
			Help: "Token endpoint polls by outcome",
		},
		[]string{"outcome"},
	)
	pollResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_flow_poll_results_total",
			Help: "Finished polling loops by terminal state",
		},
		[]string{"state"},
	)
	pollInterval = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "device_flow_poll_interval_seconds",
			Help: "Current token polling interval",
		},
	)
)

// MetricsCollectors returns collectors for the device flow
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		pollAttempts,
		pollResults,
		pollInterval,
	}
}
