package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ovsfront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ovsfront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	transactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ovsfront",
			Subsystem: "ovsdb",
			Name:      "transactions_total",
			Help:      "Committed OVSDB transactions by backend and outcome.",
		},
		[]string{"backend", "success"},
	)
	transactionCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ovsfront",
			Subsystem: "ovsdb",
			Name:      "commands_total",
			Help:      "Commands carried by committed transactions.",
		},
		[]string{"backend"},
	)
	transactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ovsfront",
			Subsystem: "ovsdb",
			Name:      "transaction_duration_seconds",
			Help:      "OVSDB transaction commit duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
	transactionRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ovsfront",
			Subsystem: "ovsdb",
			Name:      "transaction_retries_total",
			Help:      "Transactions re-run after a failed verify.",
		},
		[]string{"backend"},
	)
	monitorEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ovsfront",
			Subsystem: "monitor",
			Name:      "events_total",
			Help:      "Row events seen by the northbound monitor.",
		},
		[]string{"table", "event", "handled"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			transactions,
			transactionCommands,
			transactionDuration,
			transactionRetries,
			monitorEvents,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordTransaction(backend string, commands int, duration time.Duration, err error) {
	RegisterMetrics()
	transactions.WithLabelValues(backend, strconv.FormatBool(err == nil)).Inc()
	transactionCommands.WithLabelValues(backend).Add(float64(commands))
	transactionDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

func RecordTransactionRetry(backend string) {
	RegisterMetrics()
	transactionRetries.WithLabelValues(backend).Inc()
}

func RecordMonitorEvent(table, event string, handled bool) {
	RegisterMetrics()
	monitorEvents.WithLabelValues(table, event, strconv.FormatBool(handled)).Inc()
}
