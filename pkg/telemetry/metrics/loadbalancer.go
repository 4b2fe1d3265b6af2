package metrics

import (
	"clp/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// LoadBalancerMetrics tracks load-balancer switch/reset/exhaustion events
// per service, and usage-token counters by service and metric name.
type LoadBalancerMetrics struct {
	switches  *prometheus.CounterVec
	resets    *prometheus.CounterVec
	exhausted *prometheus.CounterVec
	usage     *prometheus.CounterVec
	subs      *prometheus.GaugeVec
}

// NewLoadBalancerMetrics creates and registers load-balancer and usage
// metrics with the provided registry.
func NewLoadBalancerMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *LoadBalancerMetrics {
	lm := &LoadBalancerMetrics{
		switches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "lb_switches_total",
				Help:      "Total number of load-balancer config switches",
			},
			[]string{"service"},
		),
		resets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "lb_resets_total",
				Help:      "Total number of load-balancer failure-state resets",
			},
			[]string{"service"},
		),
		exhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "lb_exhausted_total",
				Help:      "Total number of requests that exhausted every candidate config",
			},
			[]string{"service"},
		),
		usage: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "usage_tokens_total",
				Help:      "Total tokens parsed from upstream responses",
			},
			[]string{"service", "metric"},
		),
		subs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "realtime_subscribers",
				Help:      "Current number of realtime hub subscribers",
			},
			[]string{"service"},
		),
	}

	registry.MustRegister(lm.switches, lm.resets, lm.exhausted, lm.usage, lm.subs)

	return lm
}

// RecordSwitch records an lb_switch event for a service.
func (lm *LoadBalancerMetrics) RecordSwitch(service string) {
	lm.switches.WithLabelValues(service).Inc()
}

// RecordReset records an lb_reset event for a service.
func (lm *LoadBalancerMetrics) RecordReset(service string) {
	lm.resets.WithLabelValues(service).Inc()
}

// RecordExhausted records an lb_exhausted event for a service.
func (lm *LoadBalancerMetrics) RecordExhausted(service string) {
	lm.exhausted.WithLabelValues(service).Inc()
}

// RecordUsage adds to a named usage metric (input, cached_create,
// cached_read, output, reasoning, total) for a service.
func (lm *LoadBalancerMetrics) RecordUsage(service, metric string, amount int) {
	if amount <= 0 {
		return
	}
	lm.usage.WithLabelValues(service, metric).Add(float64(amount))
}

// SetSubscribers sets the current realtime-hub subscriber gauge for a service.
func (lm *LoadBalancerMetrics) SetSubscribers(service string, count int) {
	lm.subs.WithLabelValues(service).Set(float64(count))
}
