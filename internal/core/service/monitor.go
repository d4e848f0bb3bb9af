package service

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
)

// Monitor defaults.
const (
	DefaultMaxConcurrent   = 20
	DefaultCPUThreshold    = 90.0
	DefaultMemoryThreshold = 90.0
	DefaultResponseWindow  = 100
	DefaultSampleInterval  = 5 * time.Second

	warnConcurrencyRatio = 0.7
	warnResourceRatio    = 0.8
)

// SystemSampler reads host resource usage. Implementations may block for
// the duration of one read.
type SystemSampler interface {
	Sample() (domain.SystemStats, error)
}

// MonitorConfig configures a RequestMonitor.
type MonitorConfig struct {
	Thresholds     domain.Thresholds
	ResponseWindow int
	SampleInterval time.Duration
	Sampler        SystemSampler // nil disables CPU and memory checks
	Clock          func() time.Time
	Logger         *slog.Logger
}

// RequestMonitor tracks in-flight requests, response times and host load,
// and decides whether the server is overloaded.
type RequestMonitor struct {
	active   atomic.Int64
	total    atomic.Int64
	errors   atomic.Int64
	rejected atomic.Int64

	thresholds atomic.Pointer[domain.Thresholds]

	ringMu   sync.Mutex
	ring     []float64 // milliseconds
	ringNext int
	ringLen  int

	sampler SystemSampler
	sysMu   sync.RWMutex
	sys     Cached[domain.SystemStats]
	group   singleflight.Group

	now       func() time.Time
	startedAt time.Time
	logger    *slog.Logger
}

// NewRequestMonitor creates a RequestMonitor. Zero fields in cfg take defaults.
func NewRequestMonitor(cfg MonitorConfig) *RequestMonitor {
	if cfg.ResponseWindow <= 0 {
		cfg.ResponseWindow = DefaultResponseWindow
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	m := &RequestMonitor{
		ring:    make([]float64, cfg.ResponseWindow),
		sampler: cfg.Sampler,
		sys:     Cached[domain.SystemStats]{MaxAge: cfg.SampleInterval},
		now:     cfg.Clock,
		logger:  cfg.Logger,
	}
	m.startedAt = m.now()
	m.SetThresholds(cfg.Thresholds)
	return m
}

// SetThresholds replaces the admission ceilings. Zero fields take defaults.
func (m *RequestMonitor) SetThresholds(t domain.Thresholds) {
	if t.MaxConcurrent <= 0 {
		t.MaxConcurrent = DefaultMaxConcurrent
	}
	if t.CPUPercent <= 0 {
		t.CPUPercent = DefaultCPUThreshold
	}
	if t.MemoryPercent <= 0 {
		t.MemoryPercent = DefaultMemoryThreshold
	}
	m.thresholds.Store(&t)
}

// Thresholds returns the current admission ceilings.
func (m *RequestMonitor) Thresholds() domain.Thresholds {
	return *m.thresholds.Load()
}

// RequestStart records a request entering the server.
func (m *RequestMonitor) RequestStart() {
	m.active.Add(1)
	m.total.Add(1)
}

// RequestEnd records a request leaving the server.
func (m *RequestMonitor) RequestEnd(d time.Duration, isError bool) {
	for {
		cur := m.active.Load()
		if cur <= 0 || m.active.CompareAndSwap(cur, cur-1) {
			break
		}
	}

	m.ringMu.Lock()
	m.ring[m.ringNext] = float64(d) / float64(time.Millisecond)
	m.ringNext = (m.ringNext + 1) % len(m.ring)
	if m.ringLen < len(m.ring) {
		m.ringLen++
	}
	m.ringMu.Unlock()

	if isError {
		m.errors.Add(1)
	}
}

// RecordRejection counts a request refused by admission control.
func (m *RequestMonitor) RecordRejection() {
	m.rejected.Add(1)
}

// ActiveRequests returns the number of requests in flight.
func (m *RequestMonitor) ActiveRequests() int64 {
	return m.active.Load()
}

// CheckOverloaded reports whether new heavy work should be refused and why.
// Checks run in a fixed order and the first breach wins.
func (m *RequestMonitor) CheckOverloaded() (bool, string) {
	return m.check(m.active.Load(), m.Thresholds(), m.systemStats())
}

func (m *RequestMonitor) check(active int64, t domain.Thresholds, sys domain.SystemStats) (bool, string) {
	if active >= int64(t.MaxConcurrent) {
		return true, fmt.Sprintf("Too many concurrent requests (%d/%d)", active, t.MaxConcurrent)
	}
	if sys.CPUPercent >= t.CPUPercent {
		return true, fmt.Sprintf("CPU usage too high (%.0f%%)", sys.CPUPercent)
	}
	if sys.MemoryPercent >= t.MemoryPercent {
		return true, fmt.Sprintf("Memory usage too high (%.0f%%)", sys.MemoryPercent)
	}
	return false, ""
}

// StatusLevel summarizes current health.
func (m *RequestMonitor) StatusLevel() domain.StatusLevel {
	return statusLevel(m.active.Load(), m.Thresholds(), m.systemStats())
}

func statusLevel(active int64, t domain.Thresholds, sys domain.SystemStats) domain.StatusLevel {
	a := float64(active)
	switch {
	case a >= float64(t.MaxConcurrent) || sys.CPUPercent >= t.CPUPercent || sys.MemoryPercent >= t.MemoryPercent:
		return domain.StatusCritical
	case a >= float64(t.MaxConcurrent)*warnConcurrencyRatio ||
		sys.CPUPercent >= t.CPUPercent*warnResourceRatio ||
		sys.MemoryPercent >= t.MemoryPercent*warnResourceRatio:
		return domain.StatusWarning
	default:
		return domain.StatusHealthy
	}
}

// Snapshot builds a fresh view of the monitor's state.
func (m *RequestMonitor) Snapshot() domain.ServerSnapshot {
	sys := m.systemStats()
	t := m.Thresholds()
	active := m.active.Load()
	overloaded, reason := m.check(active, t, sys)
	uptime := m.now().Sub(m.startedAt)

	return domain.ServerSnapshot{
		Status:         statusLevel(active, t, sys),
		ActiveRequests: active,
		TotalRequests:  m.total.Load(),
		TotalErrors:    m.errors.Load(),
		TotalRejected:  m.rejected.Load(),
		SystemStats:    sys,
		AvgResponseMS:  m.averageResponse(),
		Uptime:         uptime,
		UptimeSeconds:  uptime.Round(time.Second).Seconds(),
		Overloaded:     overloaded,
		Reason:         reason,
	}
}

func (m *RequestMonitor) averageResponse() float64 {
	m.ringMu.Lock()
	defer m.ringMu.Unlock()
	if m.ringLen == 0 {
		return 0
	}
	var sum float64
	for i := range m.ringLen {
		sum += m.ring[i]
	}
	avg := sum / float64(m.ringLen)
	return float64(int64(avg*10+0.5)) / 10
}

// systemStats returns the cached host sample, refreshing it when stale.
// Concurrent callers that find the sample stale share one refresh.
func (m *RequestMonitor) systemStats() domain.SystemStats {
	if m.sampler == nil {
		return domain.SystemStats{}
	}

	m.sysMu.RLock()
	cached := m.sys
	m.sysMu.RUnlock()

	now := m.now()
	if !cached.IsStale(now) {
		return cached.Value
	}

	v, _, _ := m.group.Do("sample", func() (any, error) {
		stats, err := m.sampler.Sample()

		m.sysMu.Lock()
		defer m.sysMu.Unlock()
		if err != nil {
			m.logger.Warn("system sample failed, keeping previous values", "error", err)
		} else {
			m.sys.Value = stats
		}
		// A failed read still waits a full interval before retrying.
		m.sys.FetchedAt = now
		return m.sys.Value, nil
	})
	return v.(domain.SystemStats)
}
