package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. A nil
// *Collector is valid and records nothing.
type Collector struct {
	// Registry for this collector instance
	registry  *prometheus.Registry
	namespace string

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Command metrics
	CommandExecutions *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	DedupHits         *prometheus.CounterVec

	// Backend metrics
	BackendCalls *prometheus.CounterVec
	LocalProbes  *prometheus.CounterVec

	// Sync metrics
	SyncRuns       *prometheus.CounterVec
	SchedulerTicks *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry:  registry,
		namespace: namespace,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CommandExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "command_executions_total",
				Help:      "Commands executed, by name and outcome",
			},
			[]string{"command", "outcome"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Command execution time in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		DedupHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "command_dedup_hits_total",
				Help:      "Creation commands answered without executing, by kind (cached, joined)",
			},
			[]string{"kind"},
		),
		BackendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_calls_total",
				Help:      "Mutations served, by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		LocalProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "local_process_probes_total",
				Help:      "Health probes sent to the local process, by result",
			},
			[]string{"result"},
		),
		SyncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_total",
				Help:      "Sync operations, by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		SchedulerTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_scheduler_ticks_total",
				Help:      "Auto-sync ticks, by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.CommandExecutions,
		c.CommandDuration,
		c.DedupHits,
		c.BackendCalls,
		c.LocalProbes,
		c.SyncRuns,
		c.SchedulerTicks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordCommand records one command execution.
func (c *Collector) RecordCommand(command, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.CommandExecutions.WithLabelValues(command, outcome).Inc()
	c.CommandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordDedupHit records a creation command answered from the cache or by
// joining an in-flight execution.
func (c *Collector) RecordDedupHit(kind string) {
	if c == nil {
		return
	}
	c.DedupHits.WithLabelValues(kind).Inc()
}

// RecordBackendCall records which backend served a mutation.
func (c *Collector) RecordBackendCall(backend, outcome string) {
	if c == nil {
		return
	}
	c.BackendCalls.WithLabelValues(backend, outcome).Inc()
}

// RecordLocalProbe records a local process health probe.
func (c *Collector) RecordLocalProbe(reachable bool) {
	if c == nil {
		return
	}
	result := "unreachable"
	if reachable {
		result = "reachable"
	}
	c.LocalProbes.WithLabelValues(result).Inc()
}

// RecordSync records a sync operation.
func (c *Collector) RecordSync(action, outcome string) {
	if c == nil {
		return
	}
	c.SyncRuns.WithLabelValues(action, outcome).Inc()
}

// RecordSchedulerTick records an auto-sync tick.
func (c *Collector) RecordSchedulerTick(outcome string) {
	if c == nil {
		return
	}
	c.SchedulerTicks.WithLabelValues(outcome).Inc()
}

// CacheSnapshot is a point-in-time view of an in-memory cache.
type CacheSnapshot struct {
	Items     int
	Bytes     int64
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
}

// WatchCache exports the statistics returned by snapshot, labelled
// cache=name. snapshot is called on every scrape.
func (c *Collector) WatchCache(name string, snapshot func() CacheSnapshot) error {
	if c == nil {
		return nil
	}
	labels := prometheus.Labels{"cache": name}
	gauge := func(metric, help string, value func(CacheSnapshot) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: c.namespace, Name: metric, Help: help, ConstLabels: labels,
		}, func() float64 { return value(snapshot()) })
	}
	counter := func(metric, help string, value func(CacheSnapshot) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: c.namespace, Name: metric, Help: help, ConstLabels: labels,
		}, func() float64 { return value(snapshot()) })
	}

	for _, m := range []prometheus.Collector{
		gauge("cache_items", "Entries held in the cache", func(s CacheSnapshot) float64 { return float64(s.Items) }),
		gauge("cache_bytes", "Approximate bytes held in the cache", func(s CacheSnapshot) float64 { return float64(s.Bytes) }),
		counter("cache_hits_total", "Cache lookups that found a live entry", func(s CacheSnapshot) float64 { return float64(s.Hits) }),
		counter("cache_misses_total", "Cache lookups that found nothing", func(s CacheSnapshot) float64 { return float64(s.Misses) }),
		counter("cache_evictions_total", "Entries evicted to stay within limits", func(s CacheSnapshot) float64 { return float64(s.Evictions) }),
		counter("cache_expired_total", "Entries dropped after their TTL", func(s CacheSnapshot) float64 { return float64(s.Expired) }),
	} {
		if err := c.registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}
