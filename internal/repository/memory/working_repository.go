package memory

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	pkgmemory "airport-capacity-be/pkg/memory"
)

const keySeparator = "::"

// WorkingRepository is the in-process working-memory backend. Expiry is
// handled by go-cache: lazy on read plus a background janitor.
type WorkingRepository struct {
	cache *cache.Cache
}

var _ pkgmemory.KV = &WorkingRepository{}

func NewWorkingRepository() *WorkingRepository {
	// Default expiration of 30 minutes matches the session TTL; expired items
	// are purged every 10 minutes
	c := cache.New(30*time.Minute, 10*time.Minute)
	return &WorkingRepository{
		cache: c,
	}
}

func (r *WorkingRepository) Get(bucket, key string) ([]byte, error) {
	if x, found := r.cache.Get(bucket + keySeparator + key); found {
		return x.([]byte), nil
	}
	return nil, nil
}

func (r *WorkingRepository) Put(bucket, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	r.cache.Set(bucket+keySeparator+key, value, ttl)
	return nil
}

func (r *WorkingRepository) Delete(bucket, key string) error {
	r.cache.Delete(bucket + keySeparator + key)
	return nil
}

func (r *WorkingRepository) Scan(bucket, prefix string) (map[string][]byte, error) {
	full := bucket + keySeparator + prefix
	out := make(map[string][]byte)
	for k, item := range r.cache.Items() {
		if strings.HasPrefix(k, full) {
			out[strings.TrimPrefix(k, bucket+keySeparator)] = item.Object.([]byte)
		}
	}
	return out, nil
}
