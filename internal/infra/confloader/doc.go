// Package confloader loads configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables
//  3. Configuration file (YAML)
//  4. Values already present in the target struct
//
// Environment variables carry the GATEKEEPER_ prefix and use a double
// underscore between nesting levels, so single underscores survive in key
// names: GATEKEEPER_AUTH__TOKEN_SECRET sets auth.token_secret.
//
// Watcher reports changes to a single config file, debounced, for hot reload.
package confloader
