// Package metrics provides Prometheus HTTP metrics middleware and the
// moderation operation counter.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	internal_errors "github.com/staffhub/staffhub/shared/errors"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffhub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "staffhub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "staffhub_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Middleware records request count, latency and in-flight requests. Paths
// are labelled with the chi route pattern so that identities in URLs do not
// explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routePattern falls back to "unmatched" for requests no route handled.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

var moderationOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "staffhub_moderation_operations_total",
		Help: "Total number of supervisor operations by outcome",
	},
	[]string{"operation", "outcome"},
)

// Outcome labels for ObserveModeration.
const (
	OutcomeSuccess      = "success"
	OutcomeParseError   = "parse_error"
	OutcomeNotFound     = "not_found"
	OutcomeUnauthorized = "unauthorized"
	OutcomeStoreError   = "store_error"
	OutcomeError        = "error"
)

// ObserveModeration counts one supervisor operation, classifying err by kind.
func ObserveModeration(operation string, err error) {
	moderationOperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, internal_errors.ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, internal_errors.ErrParse):
		return OutcomeParseError
	case errors.Is(err, internal_errors.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, internal_errors.ErrStore):
		return OutcomeStoreError
	default:
		return OutcomeError
	}
}
