package config

import (
	"time"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/logger"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/tracer"
)

// ServerConfig is the root configuration for gatekeeper-server.
type ServerConfig struct {
	HTTP      HTTPSection      `koanf:"http"`
	Admission AdmissionSection `koanf:"admission"`
	RateLimit RateLimitSection `koanf:"rate_limit"`
	Auth      AuthSection      `koanf:"auth"`
	Quota     QuotaSection     `koanf:"quota"`
	Storage   StorageSection   `koanf:"storage"`
	Log       logger.Config    `koanf:"log"`
	Telemetry TelemetrySection `koanf:"telemetry"`
}

// HTTPSection configures the HTTP listener.
type HTTPSection struct {
	Addr            string        `koanf:"addr"`
	TLSCertFile     string        `koanf:"tls_cert_file"`
	TLSKeyFile      string        `koanf:"tls_key_file"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// TrustProxy takes client addresses from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites them.
	TrustProxy  bool     `koanf:"trust_proxy"`
	CORSOrigins []string `koanf:"cors_origins"`
	Development bool     `koanf:"development"`
}

// AdmissionSection configures the request monitor and admission gate.
// The thresholds are reloaded at runtime when the config file changes.
type AdmissionSection struct {
	MaxConcurrent   int     `koanf:"max_concurrent"`
	CPUThreshold    float64 `koanf:"cpu_threshold"`
	MemoryThreshold float64 `koanf:"memory_threshold"`

	ResponseWindow int           `koanf:"response_window"`
	SampleInterval time.Duration `koanf:"sample_interval"`
	RetryAfter     time.Duration `koanf:"retry_after"`

	// SystemSampling enables CPU and memory checks from procfs.
	SystemSampling bool   `koanf:"system_sampling"`
	ProcMount      string `koanf:"proc_mount"`

	PassthroughPrefixes []string `koanf:"passthrough_prefixes"`
	HeavyRoutes         []string `koanf:"heavy_routes"`
}

// Thresholds returns the admission ceilings.
func (a AdmissionSection) Thresholds() domain.Thresholds {
	return domain.Thresholds{
		MaxConcurrent: a.MaxConcurrent,
		CPUPercent:    a.CPUThreshold,
		MemoryPercent: a.MemoryThreshold,
	}
}

// RateLimitSection configures the limiters.
type RateLimitSection struct {
	// Requests per Window for each client on each inference route.
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`

	LoginAttempts int           `koanf:"login_attempts"`
	LoginWindow   time.Duration `koanf:"login_window"`

	// GlobalPerMinute is a coarse per-IP ceiling across all routes; 0 disables.
	GlobalPerMinute int `koanf:"global_per_minute"`
}

// AuthSection configures tokens, passwords and API keys.
type AuthSection struct {
	TokenSecret     string        `koanf:"token_secret"`
	Issuer          string        `koanf:"issuer"`
	AccessTTL       time.Duration `koanf:"access_ttl"`
	RefreshTTL      time.Duration `koanf:"refresh_ttl"`
	StaffAccessTTL  time.Duration `koanf:"staff_access_ttl"`
	StaffRefreshTTL time.Duration `koanf:"staff_refresh_ttl"`
	BcryptCost      int           `koanf:"bcrypt_cost"`
	KeyCacheSize    int           `koanf:"key_cache_size"`
	KeyCacheTTL     time.Duration `koanf:"key_cache_ttl"`
}

// QuotaSection configures the daily prompt quota.
type QuotaSection struct {
	// TimeZone is the IANA zone whose midnight resets the counters.
	TimeZone string `koanf:"timezone"`
}

// Location loads the quota time zone.
func (q QuotaSection) Location() (*time.Location, error) {
	if q.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(q.TimeZone)
}

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// StorageSection selects where shared state lives.
type StorageSection struct {
	// Backend holds sessions, revocations and rate windows: memory or redis.
	Backend     string `koanf:"backend"`
	RedisURL    string `koanf:"redis_url"`
	RedisPrefix string `koanf:"redis_prefix"`

	// Directory holds users, API keys and quotas: memory or postgres.
	Directory     string `koanf:"directory"`
	PostgresDSN   string `koanf:"postgres_dsn"`
	MigrateSchema bool   `koanf:"migrate_schema"`

	// SweepInterval is how often expired in-process entries are dropped.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// TelemetrySection configures metrics and tracing.
type TelemetrySection struct {
	Metrics bool          `koanf:"metrics"`
	Tracing tracer.Config `koanf:"tracing"`
}
