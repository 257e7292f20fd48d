package redisch

import "github.com/redis/go-redis/v9"

// insertScript stores a message with a created_at strictly greater than the
// newest one in the conversation and returns the assigned timestamp.
//
// KEYS: last_ts, messages zset, message hash
// ARGV: proposed ts, id, conversation id, sender id, content
var insertScript = redis.NewScript(`
local last = tonumber(redis.call('GET', KEYS[1]) or '0')
local ts = tonumber(ARGV[1])
if ts <= last then ts = last + 1 end
redis.call('SET', KEYS[1], tostring(ts))
redis.call('HSET', KEYS[3],
	'id', ARGV[2], 'conversation_id', ARGV[3], 'sender_id', ARGV[4],
	'content', ARGV[5], 'is_read', '0', 'edited', '0', 'created_at', tostring(ts))
redis.call('ZADD', KEYS[2], ts, ARGV[2])
return ts
`)

// updateScript patches a message hash. Returns 0 when the message is missing.
//
// KEYS: message hash
// ARGV: has content ('1' or '0'), content, is_read (empty to keep, '0' or '1')
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
if ARGV[1] == '1' then
	local old = redis.call('HGET', KEYS[1], 'content')
	if old ~= ARGV[2] then
		redis.call('HSET', KEYS[1], 'content', ARGV[2], 'edited', '1')
	end
end
if ARGV[3] ~= '' then
	redis.call('HSET', KEYS[1], 'is_read', ARGV[3])
end
return 1
`)

// typingScript writes a typing state unless a newer one is held.
// Returns 1 when applied.
//
// KEYS: typing hash
// ARGV: user id, updated_at ms, '0' or '1'
var typingScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if cur then
	local ts = tonumber(string.match(cur, '^(%d+):'))
	if ts and ts > tonumber(ARGV[2]) then return 0 end
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2] .. ':' .. ARGV[3])
return 1
`)
