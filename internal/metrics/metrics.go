// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RenumberPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_renumber_passes_total",
		Help: "Order renumbering passes by trigger and outcome.",
	}, []string{"trigger", "outcome"})

	RenumberRowFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_renumber_row_failures_total",
		Help: "Orders whose order_id could not be written during a pass.",
	})

	RenumberDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crm_renumber_duration_seconds",
		Help:    "Wall time of a renumbering pass.",
		Buckets: prometheus.DefBuckets,
	})

	FormulaErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_formula_errors_total",
		Help: "Formula evaluations that failed, by error code.",
	}, []string{"code"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_events_published_total",
		Help: "Order events handed to the message bus, by type and outcome.",
	}, []string{"type", "outcome"})

	StatsCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_stats_cache_total",
		Help: "Dashboard statistics cache lookups by result.",
	}, []string{"result"})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request latency labelled with the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
