// Package httpserver is gatekeeper's HTTP front door.
//
// The router runs every request through the middleware chain
//
//	RequestID, AccessLog, Metrics, Recover, SecureHeaders, CORS,
//	Admission, GlobalRateLimit
//
// before route-specific authentication, rate limiting and quota checks.
package httpserver
