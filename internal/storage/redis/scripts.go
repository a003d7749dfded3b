package redis

const (
	// createSessionScript atomically creates an IN_PROGRESS session while
	// enforcing the single-open-session invariant via the per-user pointer.
	createSessionScript = `
local session_key = KEYS[1]   -- hushd:session:{sessionID}
local open_ptr = KEYS[2]      -- hushd:sessions:open:{userID}
local open_set = KEYS[3]      -- hushd:sessions:open
local user_index = KEYS[4]    -- hushd:sessions:user:{userID}

local session_id = ARGV[1]
local user_id = ARGV[2]
local check_in = ARGV[3]
local check_in_ns = ARGV[4]

if redis.call('EXISTS', open_ptr) == 1 then
  return 'OPEN'
end

redis.call('HSET', session_key,
  'id', session_id,
  'user_id', user_id,
  'check_in', check_in,
  'check_in_ns', check_in_ns,
  'check_out', '',
  'status', 'IN_PROGRESS',
  'used_minutes', '0',
  'avg_decibel', '0',
  'max_decibel', '0',
  'quiet_ratio', '0',
  'scored', '0'
)

redis.call('SET', open_ptr, session_id)
redis.call('SADD', open_set, session_id)
redis.call('ZADD', user_index, check_in_ns, session_id)

return 'OK'
`

	// closeSessionScript closes a session only while it is IN_PROGRESS.
	closeSessionScript = `
local session_key = KEYS[1]
local open_ptr = KEYS[2]
local open_set = KEYS[3]

local session_id = ARGV[1]
local check_out = ARGV[2]
local status = ARGV[3]
local used_minutes = ARGV[4]

local current = redis.call('HGET', session_key, 'status')
if not current then
  return 'NONE'
end
if current ~= 'IN_PROGRESS' then
  return 'NOTOPEN'
end

redis.call('HSET', session_key,
  'check_out', check_out,
  'status', status,
  'used_minutes', used_minutes
)

redis.call('DEL', open_ptr)
redis.call('SREM', open_set, session_id)

return 'OK'
`

	// splitSessionScript closes a session at the day boundary and reopens a
	// new one for the same user in a single atomic step.
	splitSessionScript = `
local old_key = KEYS[1]
local new_key = KEYS[2]
local open_ptr = KEYS[3]
local open_set = KEYS[4]
local user_index = KEYS[5]

local old_id = ARGV[1]
local new_id = ARGV[2]
local user_id = ARGV[3]
local boundary = ARGV[4]
local boundary_ns = tonumber(ARGV[5])

local current = redis.call('HGET', old_key, 'status')
if not current then
  return 'NONE'
end
if current ~= 'IN_PROGRESS' then
  return 'NOTOPEN'
end

local check_in_ns = tonumber(redis.call('HGET', old_key, 'check_in_ns'))
local used_minutes = math.max(0, math.floor((boundary_ns - check_in_ns) / 60000000000))

redis.call('HSET', old_key,
  'check_out', boundary,
  'status', 'COMPLETED',
  'used_minutes', tostring(used_minutes)
)

redis.call('HSET', new_key,
  'id', new_id,
  'user_id', user_id,
  'check_in', boundary,
  'check_in_ns', ARGV[5],
  'check_out', '',
  'status', 'IN_PROGRESS',
  'used_minutes', '0',
  'avg_decibel', '0',
  'max_decibel', '0',
  'quiet_ratio', '0',
  'scored', '0'
)

redis.call('SET', open_ptr, new_id)
redis.call('SREM', open_set, old_id)
redis.call('SADD', open_set, new_id)
redis.call('ZADD', user_index, boundary_ns, new_id)

return 'OK'
`

	// recordStatsScript attaches session stats exactly once. A session that
	// is already scored stays untouched.
	recordStatsScript = `
local session_key = KEYS[1]

local avg_decibel = ARGV[1]
local max_decibel = ARGV[2]
local quiet_ratio = ARGV[3]

if redis.call('EXISTS', session_key) == 0 then
  return 'NONE'
end
if redis.call('HGET', session_key, 'scored') == '1' then
  return 'SCORED'
end

redis.call('HSET', session_key,
  'avg_decibel', avg_decibel,
  'max_decibel', max_decibel,
  'quiet_ratio', quiet_ratio,
  'scored', '1'
)

return 'OK'
`

	// casReputationScript applies points and grade together only when the
	// stored points still match the caller's expectation.
	casReputationScript = `
local user_key = KEYS[1]

local old_points = tonumber(ARGV[1])
local new_points = ARGV[2]
local grade = ARGV[3]

if redis.call('EXISTS', user_key) == 0 then
  return 'NONE'
end

local current = tonumber(redis.call('HGET', user_key, 'points'))
if current ~= old_points then
  return 'CONFLICT'
end

redis.call('HSET', user_key, 'points', new_points, 'grade', grade)

return 'OK'
`
)
