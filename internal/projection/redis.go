package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const ownerKeyPrefix = "subaccount:owner:"

// RedisDirectory stores the sub-account ownership mapping in Redis. Keys do
// not expire: the mapping is immutable once a sub-account exists, and the
// projector repopulates the cache from the event log after a flush.
type RedisDirectory struct {
	client *goredis.Client
}

// NewRedisDirectory creates a Directory backed by the given Redis client.
func NewRedisDirectory(client *goredis.Client) *RedisDirectory {
	return &RedisDirectory{
		client: client,
	}
}

// ResolveOwner implements Directory.
func (d *RedisDirectory) ResolveOwner(ctx context.Context, subAccountID uuid.UUID) (uuid.UUID, error) {
	value, err := d.client.Get(ctx, ownerKeyPrefix+subAccountID.String()).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return uuid.Nil, ErrUnknownSubAccount
		}
		return uuid.Nil, fmt.Errorf("failed to resolve sub-account owner: %w", err)
	}

	accountID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt owner entry for sub-account %s: %w", subAccountID, err)
	}
	return accountID, nil
}

// Record implements Directory.
func (d *RedisDirectory) Record(ctx context.Context, subAccountID, accountID uuid.UUID) error {
	if err := d.client.Set(ctx, ownerKeyPrefix+subAccountID.String(), accountID.String(), 0).Err(); err != nil {
		return fmt.Errorf("failed to record sub-account owner: %w", err)
	}
	return nil
}
