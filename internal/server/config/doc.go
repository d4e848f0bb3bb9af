// Package config defines gatekeeper-server's configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation before startup and on reload
//   - sanitize.go: a copy safe to log
//
// Configuration is loaded through internal/infra/confloader from a YAML
// file and GATEKEEPER_ environment variables.
package config
