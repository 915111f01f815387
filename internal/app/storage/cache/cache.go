// Package cache wraps a UserStore with a Redis-backed lookup cache for API
// keys. Every authenticated request resolves its key, so the hot path avoids
// a database round trip.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/microblog/internal/app/domain/user"
	"github.com/R3E-Network/microblog/internal/app/storage"
	"github.com/R3E-Network/microblog/pkg/logger"
)

const keyPrefix = "microblog:apikey:"

// UserStore caches GetUserByAPIKey results. Other calls pass through.
type UserStore struct {
	storage.UserStore
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewUserStore decorates base with a Redis cache. A non-positive ttl falls
// back to five minutes.
func NewUserStore(base storage.UserStore, client *redis.Client, ttl time.Duration, log *logger.Logger) *UserStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logger.NewDefault("apikey-cache")
	}
	return &UserStore{UserStore: base, client: client, ttl: ttl, log: log}
}

// GetUserByAPIKey consults Redis first. Cache failures are logged and the
// lookup falls through to the underlying store.
func (c *UserStore) GetUserByAPIKey(ctx context.Context, apiKey string) (user.User, error) {
	key := keyPrefix + apiKey

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached entry
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return user.User{ID: cached.ID, Name: cached.Name, APIKey: apiKey}, nil
		}
		c.log.WithField("key", keyPrefix+"***").Warn("discarding malformed cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).Warn("api key cache read failed")
	}

	u, err := c.UserStore.GetUserByAPIKey(ctx, apiKey)
	if err != nil {
		return user.User{}, err
	}

	payload, _ := json.Marshal(entry{ID: u.ID, Name: u.Name})
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("api key cache write failed")
	}
	return u, nil
}

// Ping checks Redis reachability.
func (c *UserStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

type entry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
