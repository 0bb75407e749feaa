// Package metrics exposes Prometheus instrumentation for event deliveries,
// channel subscriptions and the HTTP API.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cjeanneret/iriscam/internal/events"
)

var (
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iriscam",
			Subsystem: "events",
			Name:      "deliveries_total",
			Help:      "Payloads delivered to channel subscribers",
		},
		[]string{"channel", "state"},
	)

	subscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "iriscam",
			Subsystem: "events",
			Name:      "subscribers",
			Help:      "Installed transport subscribers per channel",
		},
		[]string{"channel"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iriscam",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "iriscam",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)

func init() {
	prometheus.MustRegister(deliveriesTotal, subscribers, httpRequestsTotal, httpRequestDuration)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps sink so that every delivery is counted under channel and
// the subscriber gauge tracks installation. Open and Close on the wrapped
// sink are forwarded when it implements events.Opener or events.Closer.
func Instrument(channel string, sink events.Sink) events.Sink {
	return &instrumentedSink{channel: channel, next: sink}
}

type instrumentedSink struct {
	channel string
	next    events.Sink
}

func (s *instrumentedSink) Deliver(p events.Payload) {
	deliveriesTotal.WithLabelValues(s.channel, p.State()).Inc()
	s.next.Deliver(p)
}

func (s *instrumentedSink) Open() error {
	if o, ok := s.next.(events.Opener); ok {
		if err := o.Open(); err != nil {
			return err
		}
	}
	subscribers.WithLabelValues(s.channel).Inc()
	return nil
}

func (s *instrumentedSink) Close() error {
	subscribers.WithLabelValues(s.channel).Dec()
	if c, ok := s.next.(events.Closer); ok {
		return c.Close()
	}
	return nil
}

// statusRecorder wraps http.ResponseWriter to capture status code. It keeps
// the Flusher and Hijacker of the underlying writer reachable for streaming
// endpoints.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// Middleware instruments requests for Prometheus.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)

		// The route pattern is only known once chi has routed the request.
		path := routePatternOrPath(r)
		status := strconv.Itoa(sr.status)
		httpRequestsTotal.WithLabelValues(path, r.Method, status).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
