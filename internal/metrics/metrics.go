// AngelaMos | 2026
// metrics.go

// Package metrics declares every Prometheus collector the service exports.
// Collectors register with the default registry at package init.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payroll"

// LoginAttemptsTotal counts authentication decisions.
// Label outcome: success, bad_credential, unknown_user, locked, disabled, error.
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Authentication attempts by outcome.",
	},
	[]string{"outcome"},
)

// LedgerOperationsTotal counts ledger calls.
// Labels: operation (add_employee, deduct, pay, get_employee), outcome
// (ok or the error kind).
var LedgerOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_operations_total",
		Help:      "Ledger operations by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// NotificationsTotal counts notification deliveries.
// Label result: sent, failed, dropped, skipped.
var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification deliveries by result.",
	},
	[]string{"result"},
)

var NotificationQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notification_queue_depth",
		Help:      "Messages waiting in each notification worker.",
	},
	[]string{"worker_id"},
)

var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and status code.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "status"},
)

func ObserveHTTP(method string, status int, elapsed time.Duration) {
	HTTPRequestDuration.
		WithLabelValues(method, strconv.Itoa(status)).
		Observe(elapsed.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
