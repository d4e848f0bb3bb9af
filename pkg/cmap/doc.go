// Package cmap provides a concurrent-safe sharded map.
//
// Keys are spread over a power-of-two number of shards, each guarded by its
// own RWMutex, so writers on different keys rarely contend. Compute and
// GetOrCreate run their callback under the shard lock, which makes
// read-modify-write on a single key atomic with respect to other callers.
package cmap
