// Package metrics exports watchdog activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/canary/pkg/canary"
	"github.com/bft-labs/canary/pkg/watchdog"
)

// Stop result label values.
const (
	resultClean     = "clean"
	resultTriggered = "triggered"
)

// Config holds configuration options for the metrics plugin.
type Config struct {
	// Registerer receives the collectors. Default: prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Namespace prefixes every metric name. Default: "canary".
	Namespace string
}

// Plugin records watchdog events into Prometheus collectors.
// It is both a canary.Plugin, which registers the collectors for the
// lifetime of a run, and a watchdog.EventHandler.
type Plugin struct {
	watchdog.BaseEventHandler

	registerer prometheus.Registerer

	pings    prometheus.Counter
	triggers prometheus.Counter
	running  prometheus.Gauge
	pingGap  prometheus.Histogram
	stops    *prometheus.CounterVec
}

// New creates the plugin's collectors. They are registered on Initialize.
func New(cfg Config) *Plugin {
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "canary"
	}

	p := &Plugin{
		registerer: cfg.Registerer,
		pings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "pings_total",
			Help:      "Total number of pings that advanced the watchdog deadline.",
		}),
		triggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "triggers_total",
			Help:      "Total number of watchdog timeouts.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "running",
			Help:      "1 while a watchdog run is active, 0 otherwise.",
		}),
		pingGap: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "ping_gap_seconds",
			Help:      "Time between consecutive pings, in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "stops_total",
			Help:      "Total number of stopped watchdog runs by result.",
		}, []string{"result"}),
	}

	// Both series appear in /metrics with value 0 from startup.
	p.stops.WithLabelValues(resultClean)
	p.stops.WithLabelValues(resultTriggered)

	return p
}

func (p *Plugin) collectors() []prometheus.Collector {
	return []prometheus.Collector{p.pings, p.triggers, p.running, p.pingGap, p.stops}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "metrics"
}

// Initialize registers the collectors. Collectors already registered by an
// earlier run of the same plugin are accepted.
func (p *Plugin) Initialize(context.Context, canary.PluginConfig) error {
	for _, c := range p.collectors() {
		if err := p.registerer.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) && are.ExistingCollector == c {
				continue
			}
			return fmt.Errorf("metrics: register collector: %w", err)
		}
	}
	return nil
}

// Shutdown leaves the collectors registered.
func (p *Plugin) Shutdown(context.Context) error {
	return nil
}

func (p *Plugin) OnStateChange(ev watchdog.StateChangeEvent) {
	if ev.Current == watchdog.StateRunning {
		p.running.Set(1)
	} else {
		p.running.Set(0)
	}
}

func (p *Plugin) OnPing(ev watchdog.PingEvent) {
	p.pings.Inc()
	p.pingGap.Observe(ev.Gap.Seconds())
}

func (p *Plugin) OnTrigger(watchdog.TriggerEvent) {
	p.triggers.Inc()
}

func (p *Plugin) OnStop(ev watchdog.StopEvent) {
	if ev.Triggered {
		p.stops.WithLabelValues(resultTriggered).Inc()
	} else {
		p.stops.WithLabelValues(resultClean).Inc()
	}
}

// WithMetrics returns a canary Option that registers the metrics plugin.
// The plugin also receives the run's events.
func WithMetrics(cfg Config) canary.Option {
	return canary.WithPlugin(New(cfg))
}

var (
	_ canary.Plugin         = (*Plugin)(nil)
	_ watchdog.EventHandler = (*Plugin)(nil)
)
