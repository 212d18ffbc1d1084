package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/sessiontrack/pkg/delivery"
)

const namespace = "sessiontrack"

const (
	outcomeDelivered = "delivered"
	outcomeDropped   = "dropped"
)

// Collector holds the tracker metrics on a private registry
type Collector struct {
	registry *prometheus.Registry

	deliveries       *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	attempts         *prometheus.CounterVec
	sweeps           *prometheus.CounterVec
	swept            *prometheus.CounterVec
}

// New creates a collector and registers all metrics
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{registry: reg}

	c.deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "deliveries_total",
		Help: "Total tracking records by type and outcome.",
	}, []string{"type", "outcome"})

	c.deliveryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "delivery_duration_seconds",
		Help:    "Time from dispatch to terminal outcome, retries included.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"type"})

	c.attempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "delivery_attempts_total",
		Help: "Total HTTP attempts by type and status code.",
	}, []string{"type", "status"})

	c.sweeps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "sweeps_total",
		Help: "Total expiry sweeps by namespace and result.",
	}, []string{"namespace", "result"})

	c.swept = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "swept_entries_total",
		Help: "Total session entries removed by expiry sweeps.",
	}, []string{"namespace"})

	reg.MustRegister(c.deliveries, c.deliveryDuration, c.attempts, c.sweeps, c.swept)
	return c
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveResult records the terminal outcome of a delivery.
// Its signature matches tracker.CompletionHook.
func (c *Collector) ObserveResult(_ context.Context, res delivery.Result) {
	typ := string(res.Request.Type)
	outcome := outcomeDelivered
	if !res.OK() {
		outcome = outcomeDropped
	}
	c.deliveries.WithLabelValues(typ, outcome).Inc()
	c.deliveryDuration.WithLabelValues(typ).Observe(res.Duration.Seconds())
}

// ObserveAttempt records a single HTTP attempt.
// Its signature matches delivery.AttemptHook.
func (c *Collector) ObserveAttempt(req delivery.Request, a delivery.Attempt) {
	status := "error"
	if a.StatusCode > 0 {
		status = strconv.Itoa(a.StatusCode)
	}
	c.attempts.WithLabelValues(string(req.Type), status).Inc()
}

// ObserveSweep records an expiry sweep.
// Its signature matches counters.SweepHook.
func (c *Collector) ObserveSweep(ns string, deleted int, err error) {
	if err != nil {
		c.sweeps.WithLabelValues(ns, "error").Inc()
		return
	}
	c.sweeps.WithLabelValues(ns, "ok").Inc()
	c.swept.WithLabelValues(ns).Add(float64(deleted))
}

// RegisterStoreSize exposes the number of live session entries.
// size is called on every scrape.
func (c *Collector) RegisterStoreSize(size func() int) error {
	return c.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "active_sessions",
		Help: "Current number of session entries held by the store.",
	}, func() float64 {
		return float64(size())
	}))
}
