package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/devnovikov/algoroom/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec

	endpoints    prometheus.Gauge
	sessions     prometheus.Gauge
	broadcasts   *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	attachReject *prometheus.CounterVec
	fanoutDur    prometheus.Histogram
	relayMsgs    *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: r,
		httpReqCnt: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"},
			[]string{"method", "route", "status"}),
		httpDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets},
			[]string{"method", "route", "status"}),
		httpInfl: prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"},
			[]string{"route"}),

		endpoints: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Subsystem: "hub", Name: "endpoints_active",
			Help: "Endpoints currently attached on this instance"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Subsystem: "hub", Name: "sessions_active",
			Help: "Sessions with at least one attached endpoint on this instance"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Subsystem: "hub", Name: "broadcasts_total"},
			[]string{"type", "origin"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Subsystem: "hub", Name: "deliveries_total"},
			[]string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Subsystem: "hub", Name: "dropped_sends_total"},
			[]string{"reason"}),
		attachReject: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Subsystem: "hub", Name: "attach_rejected_total"},
			[]string{"reason"}),
		fanoutDur: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: ns, Subsystem: "hub", Name: "fanout_duration_seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8)}),
		relayMsgs: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Subsystem: "relay", Name: "messages_total"},
			[]string{"direction"}),
	}
	r.MustRegister(m.httpReqCnt, m.httpDur, m.httpInfl)
	r.MustRegister(m.endpoints, m.sessions, m.broadcasts, m.deliveries, m.dropped, m.attachReject, m.fanoutDur, m.relayMsgs)
	return m
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) EndpointAttached() {
	if m == nil {
		return
	}
	m.endpoints.Inc()
}

func (m *Metrics) EndpointDetached() {
	if m == nil {
		return
	}
	m.endpoints.Dec()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionReleased() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// Broadcast records one fan-out of an update; origin is "local" or "relay"
func (m *Metrics) Broadcast(updateType, origin string, delivered int, since time.Time) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(updateType, origin).Inc()
	m.deliveries.WithLabelValues(updateType).Add(float64(delivered))
	m.fanoutDur.Observe(time.Since(since).Seconds())
}

// SendDropped counts an update that was not queued for an endpoint
func (m *Metrics) SendDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) AttachRejected(reason string) {
	if m == nil {
		return
	}
	m.attachReject.WithLabelValues(reason).Inc()
}

// Relay counts relay traffic; direction is "published", "received" or "skipped"
func (m *Metrics) Relay(direction string) {
	if m == nil {
		return
	}
	m.relayMsgs.WithLabelValues(direction).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
