package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// cachedUserRepository is a read-through Redis cache in front of the
// relational user lookup. Display names change rarely; a short TTL keeps
// the coordinator from hitting Postgres on every join.
type cachedUserRepository struct {
	client *redis.Client
	users  UserRepository
	ttl    time.Duration
}

func NewCachedUserRepository(client *redis.Client, users UserRepository, ttl time.Duration) UserRepository {
	return &cachedUserRepository{
		client: client,
		users:  users,
		ttl:    ttl,
	}
}

func (that *cachedUserRepository) GetNameByID(ctx context.Context, id int64) (string, error) {
	nameKey := fmt.Sprintf("username:%d", id)

	name, err := that.client.Get(ctx, nameKey).Result()
	if err == nil {
		return name, nil
	}

	if !errors.Is(err, redis.Nil) {
		// Cache trouble is not fatal; fall through to the source of truth.
		name, err = that.users.GetNameByID(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to get user name: %w", err)
		}

		return name, nil
	}

	name, err = that.users.GetNameByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to get user name: %w", err)
	}

	if err = that.client.Set(ctx, nameKey, name, that.ttl).Err(); err != nil {
		return name, nil //nolint:nilerr // serve the name even when caching fails
	}

	return name, nil
}
