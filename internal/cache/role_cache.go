package cache

import (
	"context"
	"errors"
	"time"

	"github.com/chepyr/task-boards/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// generationTTL bounds how long a board's eviction counter outlives its last
// eviction. It only has to outlast a single request.
const generationTTL = 24 * time.Hour

// setIfGeneration stores the role only while the board's eviction counter
// still holds the value the caller read before going to the database.
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RoleCache keeps (board, user) -> role in Redis for the read-side
// membership gates. Only positive lookups are cached. Writers must Evict
// after changing a membership. A nil client turns every call into a miss.
//
// Every board has an eviction counter. A reader takes Generation before it
// loads the role from the database and hands it to Set; Evict bumps the
// counter, so a fill that started before an eviction is discarded.
type RoleCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRoleCache(client *redis.Client, ttl time.Duration) *RoleCache {
	if ttl < 0 {
		ttl = 0
	}
	return &RoleCache{redis: client, ttl: ttl}
}

// Get reports a cached role. Redis errors and unknown values count as a miss
// so the caller falls back to the database.
func (c *RoleCache) Get(ctx context.Context, boardID, userID uuid.UUID) (models.Role, bool) {
	if c == nil || c.redis == nil {
		return "", false
	}
	val, err := c.redis.Get(ctx, roleKey(boardID, userID)).Result()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, roleKey(boardID, userID)).Err()
		}
		return "", false
	}
	role := models.Role(val)
	if !role.Valid() {
		_ = c.redis.Del(ctx, roleKey(boardID, userID)).Err()
		return "", false
	}
	return role, true
}

// Generation returns the board's eviction counter, 0 if the board was never
// evicted.
func (c *RoleCache) Generation(ctx context.Context, boardID uuid.UUID) (int64, error) {
	if c == nil || c.redis == nil {
		return 0, nil
	}
	gen, err := c.redis.Get(ctx, generationKey(boardID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set caches role unless the board was evicted after gen was read.
func (c *RoleCache) Set(ctx context.Context, boardID, userID uuid.UUID, role models.Role, gen int64) {
	if c == nil || c.redis == nil || c.ttl == 0 || !role.Valid() {
		return
	}
	keys := []string{generationKey(boardID), roleKey(boardID, userID)}
	_ = setIfGeneration.Run(ctx, c.redis, keys, gen, string(role), c.ttl.Milliseconds()).Err()
}

// Evict bumps the board's eviction counter and drops the users' entries in
// one MULTI block.
func (c *RoleCache) Evict(ctx context.Context, boardID uuid.UUID, userIDs ...uuid.UUID) error {
	if c == nil || c.redis == nil {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = roleKey(boardID, id)
	}
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(boardID))
		pipe.Expire(ctx, generationKey(boardID), generationTTL)
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		return nil
	})
	return err
}

func roleKey(boardID, userID uuid.UUID) string {
	return "role:" + boardID.String() + ":" + userID.String()
}

func generationKey(boardID uuid.UUID) string {
	return "role-gen:" + boardID.String()
}
