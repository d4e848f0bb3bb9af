// Package memory provides in-process implementations of gatekeeper's stores.
//
// All state lives in sharded concurrent maps and is lost on restart. The
// stores suit single-instance deployments and tests; multi-instance setups
// use the redis and postgres packages instead.
package memory
