package httpserver

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skobkin/nputop-web/internal/monitor"
	"github.com/skobkin/nputop-web/internal/tab"
)

const metricsNamespace = "nputop"

func (s *Server) registerPrometheus(mux *http.ServeMux) {
	registry := prometheus.NewRegistry()
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "active_connections",
			Help:      "Current number of active WebSocket clients.",
		}, func() float64 {
			return float64(s.wsActive.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "connections_total",
			Help:      "Total WebSocket connections accepted since start.",
		}, func() float64 {
			return float64(s.wsTotal.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "rejected_total",
			Help:      "Total WebSocket connection attempts rejected due to capacity.",
		}, func() float64 {
			return float64(s.wsRejected.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "messages_sent_total",
			Help:      "Total WebSocket messages sent to clients.",
		}, func() float64 {
			return float64(s.wsSent.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "messages_dropped_total",
			Help:      "Total WebSocket messages dropped due to backpressure.",
		}, func() float64 {
			return float64(s.wsDropped.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "unauthorized_total",
			Help:      "Total ingest requests rejected for missing or invalid tokens.",
		}, func() float64 {
			return float64(s.ingestAuthFailures.Load())
		}),
	}

	if s.store != nil {
		collectors = append(collectors,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ingest",
				Name:      "snapshots_accepted_total",
				Help:      "Total telemetry snapshots stored since start.",
			}, func() float64 {
				return float64(s.store.Accepted())
			}),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ingest",
				Name:      "snapshots_rejected_total",
				Help:      "Total telemetry snapshots refused since start.",
			}, func() float64 {
				return float64(s.store.Rejected())
			}),
		)
	}

	if tabCollector := newTabMetricsCollector(s.monitor); tabCollector != nil {
		collectors = append(collectors, tabCollector)
	}

	for _, collector := range collectors {
		registry.MustRegister(collector)
	}

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

type tabMetricsCollector struct {
	monitor *monitor.Manager
	now     func() time.Time
	tabs    *prometheus.Desc
	metrics []tabMetric
}

type tabMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	extract   func(view tab.View) (float64, bool)
}

func newTabMetricsCollector(monitorManager *monitor.Manager) prometheus.Collector {
	if monitorManager == nil {
		return nil
	}

	collector := &tabMetricsCollector{
		monitor: monitorManager,
		now:     time.Now,
		tabs: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "tabs"),
			"Number of NPU tabs currently presented.",
			nil, nil,
		),
	}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "npu", name),
			help,
			[]string{"tab_id", "device_key"},
			nil,
		)
	}
	floatOf := func(value *float64) (float64, bool) {
		if value == nil {
			return 0, false
		}
		return *value, true
	}
	bytesOf := func(value *uint64) (float64, bool) {
		if value == nil {
			return 0, false
		}
		return float64(*value), true
	}

	collector.metrics = []tabMetric{
		{
			desc:      desc("usage_ratio", "Current NPU usage as a fraction of capacity."),
			valueType: prometheus.GaugeValue,
			extract: func(view tab.View) (float64, bool) {
				return view.Usage, view.UsageVisible
			},
		},
		{
			desc:      desc("memory_used_ratio", "Current NPU memory usage as a fraction of capacity."),
			valueType: prometheus.GaugeValue,
			extract: func(view tab.View) (float64, bool) {
				return floatOf(view.MemoryFraction)
			},
		},
		{
			desc:      desc("memory_used_bytes", "Current NPU memory usage in bytes."),
			valueType: prometheus.GaugeValue,
			extract: func(view tab.View) (float64, bool) {
				return bytesOf(view.Snapshot.MemoryUsedBytes)
			},
		},
		{
			desc:      desc("memory_total_bytes", "Total NPU memory capacity in bytes."),
			valueType: prometheus.GaugeValue,
			extract: func(view tab.View) (float64, bool) {
				return bytesOf(view.Snapshot.MemoryTotalBytes)
			},
		},
		{
			desc:      desc("core_clock_hertz", "Current NPU core clock in Hertz."),
			valueType: prometheus.GaugeValue,
			extract: func(view tab.View) (float64, bool) {
				return floatOf(view.Snapshot.CoreClockHz)
			},
		},
		{
			desc:      desc("memory_clock_hertz", "Current NPU memory clock in Hertz."),
			valueType: prometheus.GaugeValue,
			extract: func(view tab.View) (float64, bool) {
				return floatOf(view.Snapshot.MemoryClockHz)
			},
		},
		{
			desc:      desc("temperature_celsius", "Current NPU temperature in Celsius."),
			valueType: prometheus.GaugeValue,
			extract: func(view tab.View) (float64, bool) {
				return floatOf(view.Snapshot.TempC)
			},
		},
		{
			desc:      desc("power_watts", "Current NPU power draw in Watts."),
			valueType: prometheus.GaugeValue,
			extract: func(view tab.View) (float64, bool) {
				return floatOf(view.Snapshot.PowerW)
			},
		},
		{
			desc:      desc("power_cap_watts", "Current NPU power cap in Watts."),
			valueType: prometheus.GaugeValue,
			extract: func(view tab.View) (float64, bool) {
				return floatOf(view.Snapshot.PowerCapW)
			},
		},
		{
			desc:      desc("power_cap_max_watts", "Maximum configurable NPU power cap in Watts."),
			valueType: prometheus.GaugeValue,
			extract: func(view tab.View) (float64, bool) {
				return floatOf(view.Snapshot.PowerCapMaxW)
			},
		},
		{
			desc:      desc("refresh_age_seconds", "Seconds elapsed since the tab was last refreshed."),
			valueType: prometheus.GaugeValue,
			extract: func(view tab.View) (float64, bool) {
				if view.UpdatedAt == nil {
					return 0, false
				}
				age := collector.now().Sub(*view.UpdatedAt).Seconds()
				if age < 0 {
					age = 0
				}
				return age, true
			},
		},
	}

	return collector
}

func (c *tabMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tabs
	for _, metric := range c.metrics {
		ch <- metric.desc
	}
}

func (c *tabMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	views := c.monitor.Views()
	ch <- prometheus.MustNewConstMetric(c.tabs, prometheus.GaugeValue, float64(len(views)))
	for _, view := range views {
		for _, metric := range c.metrics {
			value, ok := metric.extract(view)
			if !ok {
				continue
			}
			ch <- prometheus.MustNewConstMetric(metric.desc, metric.valueType, value, view.TabID, view.DeviceKey)
		}
	}
}
