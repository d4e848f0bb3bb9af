// Package main provides the entry point for gatekeeper-cli.
//
// gatekeeper-cli is the operator and user client for a gatekeeper server:
//
//   - liveness and load checks (health, status)
//   - login, token refresh and logout with a saved session
//   - API key management (keys list, create, revoke)
//   - staff operations (admin server, sessions, force-logout)
//
// Usage:
//
//	gatekeeper-cli login --email ann@example.com
//	gatekeeper-cli -o json status
//	gatekeeper-cli admin force-logout USER_ID
package main
