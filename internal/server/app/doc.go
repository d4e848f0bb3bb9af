// Package app assembles gatekeeper-server from its configuration: stores,
// services, the HTTP stack, telemetry and background loops.
//
// New builds everything without binding a port; Run serves until the
// context is cancelled and then shuts down in reverse order of startup.
package app
