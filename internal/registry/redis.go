package registry

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisRegistry keeps the seen IDs in a Redis set so several workers can
// share one registry.
type RedisRegistry struct {
	client redis.Cmdable
	key    string
}

// NewRedisRegistry returns a registry stored under key.
func NewRedisRegistry(client redis.Cmdable, key string) *RedisRegistry {
	return &RedisRegistry{client: client, key: key}
}

// Load returns the members of the Redis set.
func (r *RedisRegistry) Load(ctx context.Context) (Set, error) {
	members, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, eris.Wrapf(ErrStorageRead, "registry: smembers %s: %v", r.key, err)
	}
	return NewSet(members...), nil
}

// Save adds ids to the Redis set. SADD is idempotent.
func (r *RedisRegistry) Save(ctx context.Context, ids Set) error {
	if ids.Len() == 0 {
		return nil
	}
	members := make([]any, 0, ids.Len())
	for _, id := range ids.Sorted() {
		members = append(members, id)
	}
	if err := r.client.SAdd(ctx, r.key, members...).Err(); err != nil {
		return eris.Wrapf(ErrStorageWrite, "registry: sadd %s: %v", r.key, err)
	}
	return nil
}
