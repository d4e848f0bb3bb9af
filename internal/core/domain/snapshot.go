package domain

import "time"

// StatusLevel summarizes server health for clients and load balancers.
type StatusLevel string

const (
	StatusHealthy  StatusLevel = "healthy"
	StatusWarning  StatusLevel = "warning"
	StatusCritical StatusLevel = "critical"

	// StatusBusy is only sent on overload rejections.
	StatusBusy StatusLevel = "busy"
)

// Thresholds are the admission ceilings. They may change at runtime.
type Thresholds struct {
	MaxConcurrent int     `json:"max_concurrent"`
	CPUPercent    float64 `json:"cpu_threshold"`
	MemoryPercent float64 `json:"memory_threshold"`
}

// SystemStats is one sample of host resource usage.
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
}

// ServerSnapshot is a point-in-time view of the request monitor.
type ServerSnapshot struct {
	Status         StatusLevel `json:"status"`
	ActiveRequests int64       `json:"active_requests"`
	TotalRequests  int64       `json:"total_requests"`
	TotalErrors    int64       `json:"total_errors"`
	TotalRejected  int64       `json:"total_rejected"`
	SystemStats
	AvgResponseMS float64       `json:"avg_response_ms"`
	Uptime        time.Duration `json:"-"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Overloaded    bool          `json:"overloaded"`
	Reason        string        `json:"reason,omitempty"`
}
