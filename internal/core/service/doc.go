// Package service implements admission control and session security.
//
//   - RequestMonitor: in-flight counters, response times, host load, overload verdicts
//   - AdmissionGate: route classification and the admit or reject decision
//   - RateLimiter, LoginLimiter: sliding windows over a WindowStore
//   - DailyQuota: tier-derived daily prompt limits over a QuotaStore
//   - TokenAuthority: JWT issue, verify, revoke and force logout
//   - SessionRegistry: live session ids per user over a SessionStore
//   - AuthService, PermissionEvaluator: identities, login flows, API keys, permissions
//
// Storage is reached only through the interfaces in store.go, so the same
// services run over the in-memory stores or over Redis and Postgres.
package service
