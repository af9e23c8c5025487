// internal/backing/redis.go
package backing

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBacking stores the table blob under a single Redis string key.
type RedisBacking struct {
	rdb *redis.Client
	key string
}

// NewRedisBacking wraps an already-connected client. The caller owns the
// client's lifecycle.
func NewRedisBacking(rdb *redis.Client, key string) *RedisBacking {
	return &RedisBacking{rdb: rdb, key: key}
}

func (r *RedisBacking) Load(ctx context.Context) ([]byte, error) {
	blob, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func (r *RedisBacking) Save(ctx context.Context, blob []byte) error {
	return r.rdb.Set(ctx, r.key, blob, 0).Err()
}
