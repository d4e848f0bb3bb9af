// Command gatekeeper-server runs the admission and authentication gateway.
//
// Usage:
//
//	gatekeeper-server [--config gatekeeper.yaml] [--addr :8080] [--log-level debug]
//	gatekeeper-server check-config --config gatekeeper.yaml
//	gatekeeper-server migrate --config gatekeeper.yaml
//
// Settings come from the YAML file, then GATEKEEPER_* environment
// variables (GATEKEEPER_AUTH__TOKEN_SECRET sets auth.token_secret), then
// flags. --env-file loads a dotenv file first; variables already present in
// the environment keep their values. Editing the file while the server runs reapplies the admission
// thresholds and log level.
package main
