package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	pkgmemory "airport-capacity-be/pkg/memory"
)

const keySeparator = "::"

// WorkingRepository is the redis-backed working-memory backend for
// multi-instance deployments. Keys are namespaced by bucket; redis handles
// TTL expiry natively.
type WorkingRepository struct {
	rdb *redis.Client
}

var _ pkgmemory.KV = &WorkingRepository{}

func NewWorkingRepository(rdb *redis.Client) *WorkingRepository {
	return &WorkingRepository{rdb: rdb}
}

func (r *WorkingRepository) Get(bucket, key string) ([]byte, error) {
	val, err := r.rdb.Get(context.Background(), bucket+keySeparator+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *WorkingRepository) Put(bucket, key string, value []byte, ttl time.Duration) error {
	// redis treats 0 as "no expiration", same contract as the KV interface
	return r.rdb.Set(context.Background(), bucket+keySeparator+key, value, ttl).Err()
}

func (r *WorkingRepository) Delete(bucket, key string) error {
	return r.rdb.Del(context.Background(), bucket+keySeparator+key).Err()
}

func (r *WorkingRepository) Scan(bucket, prefix string) (map[string][]byte, error) {
	ctx := context.Background()
	match := bucket + keySeparator + prefix + "*"
	out := make(map[string][]byte)

	iter := r.rdb.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		val, err := r.rdb.Get(ctx, full).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[full[len(bucket)+len(keySeparator):]] = val
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
