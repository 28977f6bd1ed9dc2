// Package metrics provides Prometheus instrumentation for the transfer market.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts completed purchases.
	TradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transfermarket_trades_total",
		Help: "Total number of completed player purchases",
	})

	// TradeRejections counts failed buy attempts by reason.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfermarket_trade_rejections_total",
		Help: "Buy attempts rejected, partitioned by reason",
	}, []string{"reason"})

	// ListingsTotal counts listing operations by action (create/withdraw).
	ListingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfermarket_listings_total",
		Help: "Listing operations, partitioned by action",
	}, []string{"action"})

	// TeamsGenerated counts rosters built by the background generator.
	TeamsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transfermarket_teams_generated_total",
		Help: "Teams created by the roster generator",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfermarket_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transfermarket_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
// The path label uses the chi route pattern, not the raw URL, so ids in
// the path do not blow up label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
