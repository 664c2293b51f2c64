package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the orchestrator's Prometheus collectors.
type Metrics struct {
	launches       *prometheus.CounterVec
	launchFailures *prometheus.CounterVec
	closes         prometheus.Counter
	deaths         *prometheus.CounterVec
	running        prometheus.Gauge
	purged         prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates collectors registered on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "chromenv"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instance_launches_total",
			Help:      "Launch attempts accepted, by outcome once confirmed",
		},
		[]string{"outcome"},
	)
	m.launchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instance_launch_failures_total",
			Help:      "Launches rejected before or during spawn",
		},
		[]string{"code"},
	)
	m.closes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "instance_closes_total",
		Help:      "Instances closed on request",
	})
	m.deaths = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instance_deaths_total",
			Help:      "Running instances detected as gone",
		},
		[]string{"source"},
	)
	m.running = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "instances_running",
		Help:      "Instances currently launching or running",
	})
	m.purged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "environments_purged_total",
		Help:      "Trashed environments removed permanently",
	})

	m.registry.MustRegister(m.launches, m.launchFailures, m.closes, m.deaths, m.running, m.purged)
	return m
}

// Registry returns the registry to expose over HTTP.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
