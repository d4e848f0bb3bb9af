package config

import (
	"net/url"
	"strings"
)

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Auth.TokenSecret != "" {
		sanitized.Auth.TokenSecret = maskSecret(sanitized.Auth.TokenSecret)
	}
	sanitized.Storage.RedisURL = redactURL(sanitized.Storage.RedisURL)
	sanitized.Storage.PostgresDSN = redactURL(sanitized.Storage.PostgresDSN)
	if len(sanitized.Telemetry.Tracing.Headers) > 0 {
		headers := make(map[string]string, len(sanitized.Telemetry.Tracing.Headers))
		for k := range sanitized.Telemetry.Tracing.Headers {
			headers[k] = "****"
		}
		sanitized.Telemetry.Tracing.Headers = headers
	}
	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// redactURL hides the password of a URL-style DSN. Values that do not
// parse as URLs are masked whole.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return maskSecret(raw)
	}
	return u.Redacted()
}
