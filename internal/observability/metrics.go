// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Custody metrics
	DepositsTotal    prometheus.Counter
	WithdrawalsTotal *prometheus.CounterVec
	RecoveriesTotal  prometheus.Counter
	OpErrorsTotal    *prometheus.CounterVec

	// Quota metrics
	QuotaSpent prometheus.Gauge
	QuotaLimit prometheus.Gauge

	// Registry metrics
	RegisteredTokens prometheus.Gauge

	// Feed metrics
	FeedClients prometheus.Gauge

	// Persistence metrics
	JournalWriteErrors prometheus.Counter
	StateSaveErrors    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "custody_vault"
	}

	return &Metrics{
		// Custody metrics
		DepositsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "custody",
			Name:      "deposits_total",
			Help:      "Total number of native deposits recorded",
		}),
		WithdrawalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "custody",
			Name:      "withdrawals_total",
			Help:      "Total number of completed withdrawals by asset class",
		}, []string{"asset"}),
		RecoveriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "custody",
			Name:      "recoveries_total",
			Help:      "Total number of token recovery sweeps",
		}),
		OpErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "custody",
			Name:      "op_errors_total",
			Help:      "Total number of rejected operations by operation and reason",
		}, []string{"op", "reason"}),

		// Quota metrics
		QuotaSpent: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "spent_today",
			Help:      "Native outflow accounted against the current quota day",
		}),
		QuotaLimit: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "daily_limit",
			Help:      "Configured daily withdrawal limit (0 means disabled)",
		}),

		// Registry metrics
		RegisteredTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "tokens",
			Help:      "Current number of registered tokens",
		}),

		// Feed metrics
		FeedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Number of connected event feed clients",
		}),

		// Persistence metrics
		JournalWriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "journal_write_errors_total",
			Help:      "Total number of failed event journal writes",
		}),
		StateSaveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "state_save_errors_total",
			Help:      "Total number of failed vault state saves",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDeposit increments the deposits counter.
func RecordDeposit() {
	DefaultMetrics.DepositsTotal.Inc()
}

// RecordWithdrawal increments the withdrawals counter for an asset class.
func RecordWithdrawal(asset string) {
	DefaultMetrics.WithdrawalsTotal.WithLabelValues(asset).Inc()
}

// RecordRecovery increments the recovery sweeps counter.
func RecordRecovery() {
	DefaultMetrics.RecoveriesTotal.Inc()
}

// RecordOpError records a rejected custody operation.
func RecordOpError(op, reason string) {
	DefaultMetrics.OpErrorsTotal.WithLabelValues(op, reason).Inc()
}

// SetQuota updates the quota gauges.
func SetQuota(spent, limit float64) {
	DefaultMetrics.QuotaSpent.Set(spent)
	DefaultMetrics.QuotaLimit.Set(limit)
}

// SetRegisteredTokens updates the registry size gauge.
func SetRegisteredTokens(n int) {
	DefaultMetrics.RegisteredTokens.Set(float64(n))
}

// SetFeedClients updates the connected feed clients gauge.
func SetFeedClients(n int) {
	DefaultMetrics.FeedClients.Set(float64(n))
}

// RecordJournalError increments the journal write errors counter.
func RecordJournalError() {
	DefaultMetrics.JournalWriteErrors.Inc()
}

// RecordStateSaveError increments the state save errors counter.
func RecordStateSaveError() {
	DefaultMetrics.StateSaveErrors.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
