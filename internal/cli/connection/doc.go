// Package connection is gatekeeper-cli's HTTP client. It unwraps the
// server's response envelope, turns error envelopes into *APIError and
// retries requests the admission gate turned away.
package connection
