// Package config stores gatekeeper-cli settings and the tokens of the
// last login in ~/.gatekeeper/cli.yaml.
package config
