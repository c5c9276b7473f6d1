package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidshare/backend/internal/models"
)

// Recorder owns a private registry so tests and multiple servers never collide
// on global registration. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	txRetries  *prometheus.CounterVec
	limited    *prometheus.CounterVec
	requests   *prometheus.HistogramVec
}

// New builds a Recorder with the process and Go collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_core_operations_total",
			Help: "Core operations by component, operation and outcome",
		}, []string{"component", "operation", "outcome"}),
		txRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_tx_retries_total",
			Help: "Serializable transaction retries by operation",
		}, []string{"operation"}),
		limited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_rate_limited_total",
			Help: "Requests refused by the rate limiter by scope",
		}, []string{"scope"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidshare_http_request_duration_seconds",
			Help:    "HTTP request duration seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	r.registry.MustRegister(
		r.operations,
		r.txRetries,
		r.limited,
		r.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RateLimited counts one refused request in scope.
func (r *Recorder) RateLimited(scope string) {
	if r == nil {
		return
	}
	r.limited.WithLabelValues(scope).Inc()
}

// Observe counts one call of component/operation with the outcome derived from err.
func (r *Recorder) Observe(component, operation string, err error) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(component, operation, Outcome(err)).Inc()
}

// TxRetry matches db.TxRunner.OnRetry.
func (r *Recorder) TxRetry(operation string, _ int, _ error) {
	if r == nil {
		return
	}
	r.txRetries.WithLabelValues(operation).Inc()
}

// ObserveRequest records an HTTP request duration.
func (r *Recorder) ObserveRequest(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

var outcomes = []struct {
	err   error
	label string
}{
	// cancellations first: a storage error caused by one is not a storage failure
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "timeout"},
	{models.ErrNotFound, "not_found"},
	{models.ErrNotAuthorized, "not_authorized"},
	{models.ErrInvalidAmount, "invalid_amount"},
	{models.ErrSelfTransfer, "self_transfer"},
	{models.ErrInsufficientFunds, "insufficient_funds"},
	{models.ErrSelfFollow, "self_follow"},
	{models.ErrAlreadyApplied, "already_applied"},
	{models.ErrInvalidOffset, "invalid_offset"},
	{models.ErrConflict, "conflict"},
	{models.ErrStorageFailure, "storage_failure"},
	{models.ErrDuplicate, "duplicate"},
	{models.ErrInvalidInput, "invalid_input"},
}

// Outcome maps err onto a bounded label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}
