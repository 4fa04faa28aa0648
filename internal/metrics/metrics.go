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
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcoms_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satcoms_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	httpRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satcoms_http_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter.",
		},
	)

	tleFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcoms_tle_fetch_total",
			Help: "Upstream catalog fetch attempts by result (success, failure).",
		},
		[]string{"group", "result"},
	)

	tleFetchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satcoms_tle_fetch_duration_seconds",
			Help:    "Upstream catalog fetch duration in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	tleResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcoms_tle_resolutions_total",
			Help: "Element-set resolutions by outcome (fresh, refreshed, stale_fallback, unavailable).",
		},
		[]string{"group", "outcome"},
	)

	tleCacheAgeSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satcoms_tle_cache_age_seconds",
			Help: "Age of the catalog entry served for each group, in seconds.",
		},
		[]string{"group"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satcoms_propagation_duration_seconds",
			Help:    "Duration of one propagation batch in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	propagationSatellitesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcoms_propagation_satellites_total",
			Help: "Satellites propagated, by result (success, error).",
		},
		[]string{"result"},
	)

	propagationWorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "satcoms_propagation_workers",
			Help: "Configured propagation worker pool size.",
		},
	)

	coverageSatellites = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satcoms_coverage_satellites",
			Help: "Satellites in the most recent coverage report, by state (reported, available, degenerate).",
		},
		[]string{"constellation", "state"},
	)

	coverageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcoms_coverage_errors_total",
			Help: "Coverage requests that failed, by reason.",
		},
		[]string{"constellation", "reason"},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcoms_stream_connections_total",
			Help: "SSE stream connection events (connect, disconnect).",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "satcoms_streams_active",
			Help: "Currently open SSE streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satcoms_stream_messages_total",
			Help: "SSE data messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satcoms_stream_bytes_total",
			Help: "Bytes written to SSE streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satcoms_stream_errors_total",
			Help: "SSE stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		httpRateLimitedTotal,
		tleFetchTotal,
		tleFetchDurationSeconds,
		tleResolutionsTotal,
		tleCacheAgeSeconds,
		propagationDurationSeconds,
		propagationSatellitesTotal,
		propagationWorkersActive,
		coverageSatellites,
		coverageErrorsTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTLEFetch counts one upstream fetch attempt.
func RecordTLEFetch(group string, ok bool, duration time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	tleFetchTotal.WithLabelValues(group, result).Inc()
	tleFetchDurationSeconds.Observe(duration.Seconds())
}

// RecordTLEResolution counts how a group's element sets were obtained.
func RecordTLEResolution(group, outcome string) {
	tleResolutionsTotal.WithLabelValues(group, outcome).Inc()
}

// SetTLECacheAge publishes the age of the entry served for group.
func SetTLECacheAge(group string, age time.Duration) {
	tleCacheAgeSeconds.WithLabelValues(group).Set(age.Seconds())
}

// RecordPropagation records one batch's duration and per-satellite results.
func RecordPropagation(duration time.Duration, successCount, errorCount int) {
	propagationDurationSeconds.Observe(duration.Seconds())
	propagationSatellitesTotal.WithLabelValues("success").Add(float64(successCount))
	propagationSatellitesTotal.WithLabelValues("error").Add(float64(errorCount))
}

// SetPropagationWorkers publishes the worker pool size.
func SetPropagationWorkers(n int) {
	propagationWorkersActive.Set(float64(n))
}

// RecordCoverage publishes the shape of the latest report for constellation.
func RecordCoverage(constellation string, reported, available, degenerate int) {
	coverageSatellites.WithLabelValues(constellation, "reported").Set(float64(reported))
	coverageSatellites.WithLabelValues(constellation, "available").Set(float64(available))
	coverageSatellites.WithLabelValues(constellation, "degenerate").Set(float64(degenerate))
}

// IncCoverageErrors counts a failed coverage request.
func IncCoverageErrors(constellation, reason string) {
	coverageErrorsTotal.WithLabelValues(constellation, reason).Inc()
}

// IncRateLimited counts a request rejected by the rate limiter.
func IncRateLimited() { httpRateLimitedTotal.Inc() }

// IncStreamConnections counts an SSE connect or disconnect.
func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }

// IncStreamsActive increments the open stream gauge.
func IncStreamsActive() { streamsActive.Inc() }

// DecStreamsActive decrements the open stream gauge.
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamMessages counts one SSE data message.
func IncStreamMessages() { streamMessagesTotal.Inc() }

// AddStreamBytes counts bytes written to SSE clients.
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncStreamErrors counts an SSE error by reason.
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// exactRoutes are label values used verbatim.
var exactRoutes = map[string]bool{
	"/":                   true,
	"/healthz":            true,
	"/readyz":             true,
	"/metrics":            true,
	"/api/constellations": true,
}

// paramSuffixes are the per-constellation API routes. The constellation
// segment is collapsed so arbitrary path values cannot grow label cardinality.
var paramSuffixes = []string{
	"/coverage",
	"/coverage/stream",
	"/passes",
	"/tle/metadata",
}

// normalizeRoute maps a request path to a bounded set of metric labels.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/"); ok {
		if i := strings.IndexByte(rest, '/'); i > 0 {
			suffix := rest[i:]
			for _, s := range paramSuffixes {
				if suffix == s {
					return "/api/{constellation}" + s
				}
			}
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so SSE handlers keep working behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
