// Package tlsroots manages TLS material for gatekeeper.
//
//   - roots.go: client trust (system roots plus an optional private CA)
//   - watcher.go: server certificate hot reload via fsnotify
package tlsroots
