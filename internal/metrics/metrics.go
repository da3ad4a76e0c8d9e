// v1
// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nrgchamp/ventilation/internal/models"
)

// Metrics owns the service collectors and the registry they are exposed from. All
// methods are safe on a nil receiver so collaborators can run without instrumentation.
type Metrics struct {
	reg *prometheus.Registry

	readingsTotal   *prometheus.CounterVec
	alertsTotal     *prometheus.CounterVec
	modeTotal       *prometheus.CounterVec
	setpoint        *prometheus.GaugeVec
	stageErrors     *prometheus.CounterVec
	processDuration prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	cbState         *prometheus.GaugeVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		readingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ventilation_readings_total",
			Help: "Sensor readings received, by outcome (processed, rejected).",
		}, []string{"outcome"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ventilation_alerts_total",
			Help: "Alert records emitted by category and severity.",
		}, []string{"category", "severity"}),
		modeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ventilation_mode_decisions_total",
			Help: "Ventilation decisions by mode.",
		}, []string{"mode"}),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ventilation_setpoint_percent",
			Help: "Last commanded actuator setpoint (fan_supply, fan_exhaust, ac).",
		}, []string{"actuator"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ventilation_stage_errors_total",
			Help: "Collaborator failures by pipeline stage.",
		}, []string{"stage"}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ventilation_process_duration_seconds",
			Help:    "End-to-end processing time of one reading.",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cbState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cb_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total latest-state cache hits observed.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total latest-state cache misses observed.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.readingsTotal,
		m.alertsTotal,
		m.modeTotal,
		m.setpoint,
		m.stageErrors,
		m.processDuration,
		m.httpRequests,
		m.httpDuration,
		m.cbState,
		m.cacheHits,
		m.cacheMisses,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ReadingProcessed(d time.Duration) {
	if m == nil {
		return
	}
	m.readingsTotal.WithLabelValues("processed").Inc()
	m.processDuration.Observe(d.Seconds())
}

func (m *Metrics) ReadingRejected() {
	if m == nil {
		return
	}
	m.readingsTotal.WithLabelValues("rejected").Inc()
}

func (m *Metrics) Alerts(alerts []models.AlertRecord) {
	if m == nil {
		return
	}
	for _, a := range alerts {
		m.alertsTotal.WithLabelValues(a.Category, string(a.Severity)).Inc()
	}
}

func (m *Metrics) Decision(a models.VentilationAction) {
	if m == nil {
		return
	}
	m.modeTotal.WithLabelValues(string(a.Mode)).Inc()
	m.setpoint.WithLabelValues("fan_supply").Set(float64(a.FanSupplySpeed))
	m.setpoint.WithLabelValues("fan_exhaust").Set(float64(a.FanExhaustSpeed))
	m.setpoint.WithLabelValues("ac").Set(float64(a.ACPower))
}

func (m *Metrics) StageError(stage string) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) SetCircuitBreakerState(target string, state float64) {
	if m == nil {
		return
	}
	m.cbState.WithLabelValues(target).Set(state)
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and observes their latency under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}
