package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/rollcall/core/session"
)

const denylistPrefix = "rollcall:denylist:"

// Denylist stores revoked keys until they expire.
type Denylist struct {
	client *redis.Client
}

var _ session.Denylist = (*Denylist)(nil) // interface compliance check

func NewDenylist(client *redis.Client) *Denylist {
	return &Denylist{client: client}
}

func (d *Denylist) Revoke(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(d.client.Set(ctx, denylistPrefix+key, 1, ttl).Err(), "revoking key")
}

func (d *Denylist) IsRevoked(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistPrefix+key).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking key")
	}
	return n > 0, nil
}
