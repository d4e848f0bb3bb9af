// Package redisstore implements the session, revocation and rate window
// stores on Redis so that several gatekeeper instances share one view.
//
// Key layout, relative to Options.Prefix (default "gk:"):
//
//	sess:{user}    ZSET of session ids scored by expiry (unix ms)
//	bl:{hash}      blacklisted token hash, expires with the token
//	cutoff:{user}  logout cutoff (unix ms)
//	rl:{key}       ZSET of rate window events scored by time (unix ms)
package redisstore
