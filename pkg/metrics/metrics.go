package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the ledger service collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coin_ledger",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coin_ledger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coin_ledger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coin_ledger",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by kind and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	transferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coin_ledger",
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Duration of ledger operations including commit.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	sideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coin_ledger",
			Subsystem: "side_effects",
			Name:      "failures_total",
			Help:      "Post-commit side effects that failed or panicked.",
		},
		[]string{"action"},
	)

	goalCompletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coin_ledger",
			Subsystem: "goals",
			Name:      "completions_total",
			Help:      "Goals that crossed their target.",
		},
	)

	idempotencyHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coin_ledger",
			Subsystem: "idempotency",
			Name:      "hits_total",
			Help:      "Requests answered from an earlier execution, by tier.",
		},
		[]string{"tier"},
	)

	holdsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coin_ledger",
			Subsystem: "holds",
			Name:      "expired_total",
			Help:      "Holds released by the expiry job.",
		},
	)
)

// Ledger operation outcomes
const (
	OutcomeSuccess      = "success"
	OutcomeReplayed     = "replayed"
	OutcomeInsufficient = "insufficient_funds"
	OutcomeRejected     = "rejected"
	OutcomeError        = "error"
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		transfers,
		transferDuration,
		sideEffectFailures,
		goalCompletions,
		idempotencyHits,
		holdsExpired,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// HTTPRequestStarted tracks an in-flight request; call the returned func when it ends.
func HTTPRequestStarted() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// RecordHTTPRequest records one finished HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLedgerOperation records the outcome of a transfer, purchase, hold or reversal.
func RecordLedgerOperation(operation, outcome string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	transfers.WithLabelValues(operation, outcome).Inc()
	transferDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSideEffectFailure counts a failed post-commit action.
func RecordSideEffectFailure(action string) {
	sideEffectFailures.WithLabelValues(action).Inc()
}

// RecordGoalCompleted counts a goal completion.
func RecordGoalCompleted() {
	goalCompletions.Inc()
}

// RecordIdempotencyHit counts a replayed request. tier is "cache" or "ledger".
func RecordIdempotencyHit(tier string) {
	idempotencyHits.WithLabelValues(tier).Inc()
}

// RecordHoldsExpired counts holds released by the expiry job.
func RecordHoldsExpired(n int) {
	if n > 0 {
		holdsExpired.Add(float64(n))
	}
}
