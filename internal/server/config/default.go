package config

import (
	"time"

	"github.com/ekodi-ai/gatekeeper/internal/telemetry/logger"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/tracer"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:8080"
	DefaultShutdownTimeout = 15 * time.Second

	DefaultMaxConcurrent   = 20
	DefaultCPUThreshold    = 90.0
	DefaultMemoryThreshold = 90.0
	DefaultResponseWindow  = 100
	DefaultSampleInterval  = 5 * time.Second
	DefaultRetryAfter      = 10 * time.Second

	DefaultRateRequests  = 60
	DefaultRateWindow    = time.Minute
	DefaultLoginAttempts = 5
	DefaultLoginWindow   = 15 * time.Minute

	DefaultIssuer          = "gatekeeper"
	DefaultAccessTTL       = time.Hour
	DefaultRefreshTTL      = 7 * 24 * time.Hour
	DefaultStaffAccessTTL  = 12 * time.Hour
	DefaultStaffRefreshTTL = 30 * 24 * time.Hour
	DefaultBcryptCost      = 12
	DefaultKeyCacheSize    = 1024
	DefaultKeyCacheTTL     = time.Minute

	DefaultRedisPrefix   = "gk:"
	DefaultSweepInterval = time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration. It has no token
// secret, so it does not pass Verify until one is supplied.
func Default() *ServerConfig {
	return &ServerConfig{
		HTTP: HTTPSection{
			Addr:            DefaultHTTPAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Admission: AdmissionSection{
			MaxConcurrent:   DefaultMaxConcurrent,
			CPUThreshold:    DefaultCPUThreshold,
			MemoryThreshold: DefaultMemoryThreshold,
			ResponseWindow:  DefaultResponseWindow,
			SampleInterval:  DefaultSampleInterval,
			RetryAfter:      DefaultRetryAfter,
			SystemSampling:  true,
		},
		RateLimit: RateLimitSection{
			Requests:      DefaultRateRequests,
			Window:        DefaultRateWindow,
			LoginAttempts: DefaultLoginAttempts,
			LoginWindow:   DefaultLoginWindow,
		},
		Auth: AuthSection{
			Issuer:          DefaultIssuer,
			AccessTTL:       DefaultAccessTTL,
			RefreshTTL:      DefaultRefreshTTL,
			StaffAccessTTL:  DefaultStaffAccessTTL,
			StaffRefreshTTL: DefaultStaffRefreshTTL,
			BcryptCost:      DefaultBcryptCost,
			KeyCacheSize:    DefaultKeyCacheSize,
			KeyCacheTTL:     DefaultKeyCacheTTL,
		},
		Quota: QuotaSection{TimeZone: "UTC"},
		Storage: StorageSection{
			Backend:       BackendMemory,
			RedisPrefix:   DefaultRedisPrefix,
			Directory:     BackendMemory,
			SweepInterval: DefaultSweepInterval,
		},
		Log: logger.Config{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Telemetry: TelemetrySection{
			Metrics: true,
			Tracing: tracer.Config{Exporter: tracer.ExporterStdout, SampleRatio: 1},
		},
	}
}
