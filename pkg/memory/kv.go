package memory

import "time"

// KV is the working-memory backend contract. Values are opaque JSON blobs so
// the in-process and redis backends behave identically. A nil slice with a nil
// error means the key is absent or expired.
type KV interface {
	Get(bucket, key string) ([]byte, error)
	Put(bucket, key string, value []byte, ttl time.Duration) error
	Delete(bucket, key string) error
	Scan(bucket, prefix string) (map[string][]byte, error)
}
