package redis

const (
	// maxRecentRecords bounds the shared history list.
	maxRecentRecords = 512

	// maxOwnerRecords bounds each per-player history list.
	maxOwnerRecords = 128

	// addRecordScript atomically stores a session record and trims its indexes
	addRecordScript = `
local record_key = KEYS[1]   -- ttrain:session:{id}
local recent_list = KEYS[2]  -- ttrain:sessions:recent
local owner_list = KEYS[3]   -- ttrain:sessions:owner:{owner}

local id = ARGV[1]
local owner = ARGV[2]
local world = ARGV[3]
local charges_granted = ARGV[4]
local charges_used = ARGV[5]
local duration_seconds = ARGV[6]
local started_at = ARGV[7]
local ended_at = ARGV[8]
local cause = ARGV[9]
local max_recent = tonumber(ARGV[10])
local max_owner = tonumber(ARGV[11])

redis.call('HSET', record_key,
  'id', id,
  'owner', owner,
  'world', world,
  'charges_granted', charges_granted,
  'charges_used', charges_used,
  'duration_seconds', duration_seconds,
  'started_at', started_at,
  'ended_at', ended_at,
  'cause', cause
)

-- Records age out after 90 days
redis.call('EXPIRE', record_key, 7776000)

redis.call('LPUSH', recent_list, id)
redis.call('LTRIM', recent_list, 0, max_recent - 1)

redis.call('LPUSH', owner_list, id)
redis.call('LTRIM', owner_list, 0, max_owner - 1)

return 1
`
)
