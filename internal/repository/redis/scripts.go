package redis

import "github.com/kailas-cloud/creditgate/internal/db"

// Script status codes, always the first element of the reply.
const (
	statusNotFound     = 0
	statusOK           = 1
	statusCreated      = 2
	statusInsufficient = -1
	statusExists       = -2
	statusConflict     = -3
)

// Balance scripts reply {status, credits, created_at, updated_at}. Values
// are the decimal strings Redis stores, never Lua numbers, so credits stay
// exact across the whole int64 range.

// KEYS: principal, balance. ARGV: default credits, now.
var getOrCreateScript = db.NewScript("balance_get_or_create", `
if redis.call('EXISTS', KEYS[1]) == 0 then return {0} end
local status = 1
if redis.call('EXISTS', KEYS[2]) == 0 then
  redis.call('HSET', KEYS[2], 'credits', ARGV[1], 'created_at', ARGV[2], 'updated_at', ARGV[2])
  status = 2
end
local v = redis.call('HMGET', KEYS[2], 'credits', 'created_at', 'updated_at')
return {status, v[1], v[2], v[3]}
`)

// KEYS: balance. ARGV: amount, negated amount, now.
// Only the sign of the HINCRBY result is inspected; a negative result is
// rolled back.
var spendScript = db.NewScript("balance_spend", `
if redis.call('EXISTS', KEYS[1]) == 0 then return {0} end
if redis.call('HINCRBY', KEYS[1], 'credits', ARGV[2]) < 0 then
  redis.call('HINCRBY', KEYS[1], 'credits', ARGV[1])
  return {-1, redis.call('HGET', KEYS[1], 'credits')}
end
redis.call('HSET', KEYS[1], 'updated_at', ARGV[3])
local v = redis.call('HMGET', KEYS[1], 'credits', 'created_at')
return {1, v[1], v[2], ARGV[3]}
`)

// KEYS: balance. ARGV: delta, now.
var adjustScript = db.NewScript("balance_adjust", `
if redis.call('EXISTS', KEYS[1]) == 0 then return {0} end
redis.call('HINCRBY', KEYS[1], 'credits', ARGV[1])
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
local v = redis.call('HMGET', KEYS[1], 'credits', 'created_at')
return {1, v[1], v[2], ARGV[2]}
`)

// KEYS: principal, balance. ARGV: value, now.
var setScript = db.NewScript("balance_set", `
if redis.call('EXISTS', KEYS[1]) == 0 then return {0} end
local created = redis.call('HGET', KEYS[2], 'created_at') or ARGV[2]
redis.call('HSET', KEYS[2], 'credits', ARGV[1], 'created_at', created, 'updated_at', ARGV[2])
return {1, ARGV[1], created, ARGV[2]}
`)

// KEYS: principal, email, index.
// ARGV: id, email, password_hash, is_active, is_verified, is_admin, created_at.
var createPrincipalScript = db.NewScript("principal_create", `
if redis.call('EXISTS', KEYS[2]) == 1 or redis.call('EXISTS', KEYS[1]) == 1 then return {-2} end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'email', ARGV[2], 'password_hash', ARGV[3],
  'is_active', ARGV[4], 'is_verified', ARGV[5], 'is_admin', ARGV[6], 'created_at', ARGV[7])
redis.call('SET', KEYS[2], ARGV[1])
redis.call('ZADD', KEYS[3], 0, ARGV[2] .. '\0' .. ARGV[1])
return {1}
`)

// KEYS: principal. ARGV: password_hash.
var setPasswordScript = db.NewScript("principal_set_password", `
if redis.call('EXISTS', KEYS[1]) == 0 then return {0} end
redis.call('HSET', KEYS[1], 'password_hash', ARGV[1])
return {1}
`)

// KEYS: principal, old email, new email, index.
// ARGV: id, old email, new email, then field/value pairs.
// An empty new email leaves the email alone. Replies -3 when the stored
// email no longer matches the caller's view.
var patchPrincipalScript = db.NewScript("principal_patch", `
if redis.call('EXISTS', KEYS[1]) == 0 then return {0} end
if ARGV[3] ~= '' then
  if redis.call('HGET', KEYS[1], 'email') ~= ARGV[2] then return {-3} end
  if ARGV[2] ~= ARGV[3] then
    if redis.call('EXISTS', KEYS[3]) == 1 then return {-2} end
    redis.call('DEL', KEYS[2])
    redis.call('SET', KEYS[3], ARGV[1])
    redis.call('ZREM', KEYS[4], ARGV[2] .. '\0' .. ARGV[1])
    redis.call('ZADD', KEYS[4], 0, ARGV[3] .. '\0' .. ARGV[1])
    redis.call('HSET', KEYS[1], 'email', ARGV[3])
  end
end
for i = 4, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return {1}
`)

// KEYS: principal, balance, email, index. ARGV: id, email.
var deleteAccountScript = db.NewScript("account_delete", `
if redis.call('EXISTS', KEYS[1]) == 0 then return {0} end
if redis.call('HGET', KEYS[1], 'email') ~= ARGV[2] then return {-3} end
redis.call('DEL', KEYS[2], KEYS[1], KEYS[3])
redis.call('ZREM', KEYS[4], ARGV[2] .. '\0' .. ARGV[1])
return {1}
`)
