package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// prometheus metrics setup
var (
	PrometheusHeartbeatRequestDurations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "device_strategy_service",
		Subsystem: "device_strategy_service",
		Name:      "heartbeat_request_durations_seconds",
		Help:      "The duration of each heartbeat request",
		Buckets:   prometheus.LinearBuckets(0.01, 0.05, 10),
	})

	PrometheusAdminRequestDurations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "device_strategy_service",
		Subsystem: "device_strategy_service",
		Name:      "admin_request_durations_seconds",
		Help:      "The duration of each admin request",
		Buckets:   prometheus.LinearBuckets(0.01, 0.05, 10),
	})

	PrometheusHeartbeatRequestErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "device_strategy_service",
		Subsystem: "device_strategy_service",
		Name:      "heartbeat_request_error_counter",
		Help:      "The number of accumulative heartbeat request errors",
	})

	PrometheusAdminRequestErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "device_strategy_service",
		Subsystem: "device_strategy_service",
		Name:      "admin_request_error_counter",
		Help:      "The number of accumulative admin request errors",
	})

	PrometheusStrategyUpdateIndicator = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "device_strategy_service",
		Subsystem: "device_strategy_service",
		Name:      "strategy_updates_pushed_counter",
		Help:      "The number of accumulative strategy payloads pushed to heartbeating devices",
	})

	PrometheusPasswordWriteIndicator = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "device_strategy_service",
		Subsystem: "device_strategy_service",
		Name:      "password_writes_counter",
		Help:      "The number of accumulative permanent-password writes",
	})
)

func init() {
	prometheus.MustRegister(PrometheusHeartbeatRequestDurations, PrometheusAdminRequestDurations, PrometheusHeartbeatRequestErrorCounter, PrometheusAdminRequestErrorCounter, PrometheusStrategyUpdateIndicator, PrometheusPasswordWriteIndicator)
}
