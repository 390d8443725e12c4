// Package metrics provides Prometheus collectors for adapter outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tags are constant labels attached to every metric.
type Tags map[string]string

// Config configures a Collector.
type Config struct {
	// Namespace and Subsystem prefix every metric name.
	Namespace string
	Subsystem string

	// Tags are added to every metric as constant labels.
	Tags Tags

	// Registerer receives the collectors. A new registry is created when nil.
	Registerer prometheus.Registerer

	// Gatherer backs Handler. When nil it is taken from Registerer if that is
	// also a Gatherer.
	Gatherer prometheus.Gatherer

	// DurationBuckets are the request duration histogram buckets, in seconds.
	DurationBuckets []float64
}

// DefaultConfig returns a Config with the "sbridge" namespace.
func DefaultConfig() Config {
	return Config{
		Namespace:       "sbridge",
		DurationBuckets: prometheus.DefBuckets,
	}
}

// Collector records adapter activity. A nil *Collector is valid and records nothing.
type Collector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	commits  *prometheus.CounterVec
	duplex   *prometheus.CounterVec
	gatherer prometheus.Gatherer
}

// New creates a Collector and registers it.
func New(config Config) (*Collector, error) {
	if config.Registerer == nil {
		reg := prometheus.NewRegistry()
		config.Registerer = reg
		if config.Gatherer == nil {
			config.Gatherer = reg
		}
	}
	if config.Gatherer == nil {
		if g, ok := config.Registerer.(prometheus.Gatherer); ok {
			config.Gatherer = g
		}
	}
	if len(config.DurationBuckets) == 0 {
		config.DurationBuckets = prometheus.DefBuckets
	}
	labels := prometheus.Labels(config.Tags)

	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_total",
			Help:        "Requests handled by the adapter, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "Time spent in the middleware pipeline, by outcome.",
			ConstLabels: labels,
			Buckets:     config.DurationBuckets,
		}, []string{"outcome"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "response_commits_total",
			Help:        "Response commits, by trigger.",
			ConstLabels: labels,
		}, []string{"trigger"}),
		duplex: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "duplex_sessions_total",
			Help:        "Duplex sessions, by final state.",
			ConstLabels: labels,
		}, []string{"state"}),
		gatherer: config.Gatherer,
	}

	for _, col := range []prometheus.Collector{c.requests, c.duration, c.commits, c.duplex} {
		if err := config.Registerer.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics if registration fails.
func MustNew(config Config) *Collector {
	c, err := New(config)
	if err != nil {
		panic(err)
	}
	return c
}

// ObserveRequest records one pipeline run.
func (c *Collector) ObserveRequest(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(outcome).Inc()
	c.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveCommit records a response commit. forced is true when the adapter
// committed on the application's behalf.
func (c *Collector) ObserveCommit(forced bool) {
	if c == nil {
		return
	}
	trigger := "write"
	if forced {
		trigger = "forced"
	}
	c.commits.WithLabelValues(trigger).Inc()
}

// ObserveDuplex records the final state of a duplex session.
func (c *Collector) ObserveDuplex(state string) {
	if c == nil {
		return
	}
	c.duplex.WithLabelValues(state).Inc()
}

// Handler returns an HTTP handler exposing the gathered metrics.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
