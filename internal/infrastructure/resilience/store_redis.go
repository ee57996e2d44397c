package resilience

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/gts/internal/domain/models"
	"github.com/turtacn/gts/internal/domain/service"
)

const (
	// breakerKeyPrefix prefixes one JSON record per operation.
	breakerKeyPrefix = "breaker:state:"

	// breakerRegistryKey is the set of operation names with recorded
	// outcomes, used by Snapshot.
	breakerRegistryKey = "breaker:ops"
)

// casScript performs the version-guarded write atomically. An absent record
// counts as version zero, so the first outcome of a fresh operation wins
// exactly once.
var casScript = redis.NewScript(`
local key = KEYS[1]
local registry = KEYS[2]
local op = ARGV[1]
local expected_version = tonumber(ARGV[2])
local next_record = ARGV[3]

local current = redis.call('GET', key)
if current then
    local decoded = cjson.decode(current)
    if tonumber(decoded.version) ~= expected_version then
        return 0
    end
elseif expected_version ~= 0 then
    return 0
end

redis.call('SET', key, next_record)
redis.call('SADD', registry, op)
return 1
`)

// redisStateStore shares breaker records between service instances through
// Redis. Records never expire: a circuit's history is part of the service's
// operational state.
type redisStateStore struct {
	client redis.UniversalClient
}

// NewRedisStateStore creates a Redis-backed breaker state store.
func NewRedisStateStore(client redis.UniversalClient) (service.BreakerStateStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &redisStateStore{client: client}, nil
}

func (s *redisStateStore) key(operation string) string {
	return breakerKeyPrefix + operation
}

// Load returns the operation's record, or the initial closed record when
// nothing is stored yet.
func (s *redisStateStore) Load(ctx context.Context, operation string) (models.BreakerRecord, error) {
	data, err := s.client.Get(ctx, s.key(operation)).Bytes()
	if err == redis.Nil {
		return models.NewBreakerRecord(operation), nil
	}
	if err != nil {
		return models.BreakerRecord{}, fmt.Errorf("load breaker record %q: %w", operation, err)
	}

	var rec models.BreakerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.BreakerRecord{}, fmt.Errorf("decode breaker record %q: %w", operation, err)
	}
	return rec, nil
}

// CompareAndSwap writes next if the stored version still matches
// expected.Version, using a Lua script so check and write are atomic.
func (s *redisStateStore) CompareAndSwap(ctx context.Context, operation string, expected, next models.BreakerRecord) (bool, error) {
	payload, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("encode breaker record %q: %w", operation, err)
	}

	res, err := casScript.Run(ctx, s.client,
		[]string{s.key(operation), breakerRegistryKey},
		operation, expected.Version, string(payload),
	).Int()
	if err != nil {
		return false, fmt.Errorf("swap breaker record %q: %w", operation, err)
	}
	return res == 1, nil
}

// Snapshot returns all operations in the registry with their records.
func (s *redisStateStore) Snapshot(ctx context.Context) (map[string]models.BreakerRecord, error) {
	ops, err := s.client.SMembers(ctx, breakerRegistryKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list breaker operations: %w", err)
	}

	out := make(map[string]models.BreakerRecord, len(ops))
	for _, op := range ops {
		rec, err := s.Load(ctx, op)
		if err != nil {
			return nil, err
		}
		out[op] = rec
	}
	return out, nil
}
