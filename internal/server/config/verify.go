package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ekodi-ai/gatekeeper/internal/core/service"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/logger"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/tracer"
)

// Verify validates the configuration and reports every problem found.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyHTTP(&cfg.HTTP),
		verifyAdmission(&cfg.Admission),
		verifyRateLimit(&cfg.RateLimit),
		verifyAuth(&cfg.Auth),
		verifyQuota(&cfg.Quota),
		verifyStorage(&cfg.Storage),
		verifyLog(&cfg.Log),
		verifyTracing(&cfg.Telemetry.Tracing),
	)
}

// VerifyReloadable checks only the sections applied on hot reload.
func VerifyReloadable(cfg *ServerConfig) error {
	return errors.Join(verifyAdmission(&cfg.Admission), verifyLog(&cfg.Log))
}

func verifyHTTP(cfg *HTTPSection) error {
	if cfg.Addr == "" {
		return errors.New("http.addr is required")
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return errors.New("http.tls_cert_file and http.tls_key_file must be set together")
	}
	for _, f := range []string{cfg.TLSCertFile, cfg.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("http tls file: %w", err)
		}
	}
	return nil
}

func verifyAdmission(cfg *AdmissionSection) error {
	var errs []error
	if cfg.MaxConcurrent < 1 {
		errs = append(errs, errors.New("admission.max_concurrent must be at least 1"))
	}
	if cfg.CPUThreshold <= 0 || cfg.CPUThreshold > 100 {
		errs = append(errs, errors.New("admission.cpu_threshold must be in (0, 100]"))
	}
	if cfg.MemoryThreshold <= 0 || cfg.MemoryThreshold > 100 {
		errs = append(errs, errors.New("admission.memory_threshold must be in (0, 100]"))
	}
	if cfg.ResponseWindow < 1 {
		errs = append(errs, errors.New("admission.response_window must be at least 1"))
	}
	return errors.Join(errs...)
}

func verifyRateLimit(cfg *RateLimitSection) error {
	var errs []error
	if cfg.Requests < 1 || cfg.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.requests and rate_limit.window must be positive"))
	}
	if cfg.LoginAttempts < 1 || cfg.LoginWindow <= 0 {
		errs = append(errs, errors.New("rate_limit.login_attempts and rate_limit.login_window must be positive"))
	}
	if cfg.GlobalPerMinute < 0 {
		errs = append(errs, errors.New("rate_limit.global_per_minute must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyAuth(cfg *AuthSection) error {
	var errs []error
	if len(cfg.TokenSecret) < service.MinSecretLength {
		errs = append(errs, fmt.Errorf("auth.token_secret must be at least %d bytes", service.MinSecretLength))
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		errs = append(errs, errors.New("auth.access_ttl and auth.refresh_ttl must be positive"))
	}
	if cfg.AccessTTL > cfg.RefreshTTL {
		errs = append(errs, errors.New("auth.access_ttl must not exceed auth.refresh_ttl"))
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		errs = append(errs, errors.New("auth.bcrypt_cost must be between 4 and 31"))
	}
	return errors.Join(errs...)
}

func verifyQuota(cfg *QuotaSection) error {
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("quota.timezone: %w", err)
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	var errs []error
	switch cfg.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			errs = append(errs, errors.New("storage.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be memory or redis", cfg.Backend))
	}
	switch cfg.Directory {
	case BackendMemory:
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres directory"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.directory %q must be memory or postgres", cfg.Directory))
	}
	if cfg.SweepInterval <= 0 {
		errs = append(errs, errors.New("storage.sweep_interval must be positive"))
	}
	return errors.Join(errs...)
}

func verifyLog(cfg *logger.Config) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	if cfg.Format != "json" && cfg.Format != "text" {
		return fmt.Errorf("log.format %q must be json or text", cfg.Format)
	}
	return nil
}

func verifyTracing(cfg *tracer.Config) error {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Exporter {
	case tracer.ExporterStdout:
	case tracer.ExporterOTLP:
		if cfg.Endpoint == "" {
			return errors.New("telemetry.tracing.endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("telemetry.tracing.exporter %q must be stdout or otlp", cfg.Exporter)
	}
	return nil
}
