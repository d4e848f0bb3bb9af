package redisstore

import "github.com/redis/go-redis/v9"

// addSession adds a member and extends the key TTL to cover it.
// KEYS[1] set, ARGV[1] score, ARGV[2] member, ARGV[3] ttl ms.
var addSession = redis.NewScript(`
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < tonumber(ARGV[3]) then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// clearSessions deletes a set and returns how many live members it held.
// KEYS[1] set, ARGV[1] now ms.
var clearSessions = redis.NewScript(`
local n = redis.call('ZCOUNT', KEYS[1], '(' .. ARGV[1], '+inf')
redis.call('DEL', KEYS[1])
return n
`)

// setLonger writes a value unless the key already outlives ttl.
// KEYS[1] key, ARGV[1] ttl ms, ARGV[2] value.
var setLonger = redis.NewScript(`
local ttl = redis.call('PTTL', KEYS[1])
if ttl < tonumber(ARGV[1]) then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[1])
end
return 1
`)

// setLater writes a numeric value unless a larger one is stored.
// KEYS[1] key, ARGV[1] value, ARGV[2] ttl ms.
var setLater = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if tonumber(ARGV[1]) > cur then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
end
return 1
`)

// hitWindow prunes, checks and appends one event atomically.
// KEYS[1] set, ARGV[1] oldest allowed score (exclusive), ARGV[2] now ms,
// ARGV[3] limit, ARGV[4] member, ARGV[5] ttl ms.
// Returns {count, allowed}.
var hitWindow = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local n = redis.call('ZCARD', KEYS[1])
if n >= tonumber(ARGV[3]) then
	return {n, 0}
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {n + 1, 1}
`)
