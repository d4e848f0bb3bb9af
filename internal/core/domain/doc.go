// Package domain defines the core domain models for gatekeeper.
//
// Domain models are value objects without IO dependencies:
//
//   - Role, Permission, PermissionSet: the static authorization table
//   - Tier, TierLimits: subscription ceilings
//   - User, Identity, APIKey: caller records and the verified identity
//   - Claims, TokenKind: decoded token content
//   - QuotaCounter: the daily prompt counter
//   - ServerSnapshot, Thresholds: request monitor state
//   - Errors: coded domain errors
package domain
