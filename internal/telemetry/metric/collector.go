package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
)

// SnapshotSource is satisfied by the request monitor.
type SnapshotSource interface {
	Snapshot() domain.ServerSnapshot
}

// MonitorCollector reads a fresh monitor snapshot on every scrape.
type MonitorCollector struct {
	src SnapshotSource

	active     *prometheus.Desc
	requests   *prometheus.Desc
	errors     *prometheus.Desc
	rejected   *prometheus.Desc
	cpu        *prometheus.Desc
	memory     *prometheus.Desc
	avgLatency *prometheus.Desc
	overloaded *prometheus.Desc
	uptime     *prometheus.Desc
}

// NewMonitorCollector creates a collector over src.
func NewMonitorCollector(src SnapshotSource) *MonitorCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "monitor", name), help, nil, nil)
	}
	return &MonitorCollector{
		src:        src,
		active:     desc("active_requests", "Requests currently in flight."),
		requests:   desc("requests_total", "Requests completed since start."),
		errors:     desc("errors_total", "Requests completed with an error."),
		rejected:   desc("rejected_total", "Requests rejected by the admission gate."),
		cpu:        desc("cpu_percent", "Last sampled CPU utilisation."),
		memory:     desc("memory_percent", "Last sampled memory utilisation."),
		avgLatency: desc("avg_response_ms", "Mean latency over the response window."),
		overloaded: desc("overloaded", "1 when the gate would reject heavy requests."),
		uptime:     desc("uptime_seconds", "Seconds since the monitor started."),
	}
}

// Describe implements prometheus.Collector.
func (c *MonitorCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.active, c.requests, c.errors, c.rejected,
		c.cpu, c.memory, c.avgLatency, c.overloaded, c.uptime,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *MonitorCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Snapshot()
	overloaded := 0.0
	if s.Overloaded {
		overloaded = 1
	}
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(s.ActiveRequests))
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.TotalRequests))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.TotalErrors))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(s.TotalRejected))
	ch <- prometheus.MustNewConstMetric(c.cpu, prometheus.GaugeValue, s.CPUPercent)
	ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, s.MemoryPercent)
	ch <- prometheus.MustNewConstMetric(c.avgLatency, prometheus.GaugeValue, s.AvgResponseMS)
	ch <- prometheus.MustNewConstMetric(c.overloaded, prometheus.GaugeValue, overloaded)
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, s.UptimeSeconds)
}

// RegisterMonitor registers a MonitorCollector on m.
func (m *Metrics) RegisterMonitor(src SnapshotSource) error {
	return m.registry.Register(NewMonitorCollector(src))
}
