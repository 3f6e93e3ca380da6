package repositories

import (
	"context"
	"errors"
	"log"

	"swadhan-eats/internal/models"
	"swadhan-eats/pkg/cache"
)

const cartKeyPrefix = "cart:"

// redisCartRepository keeps the snapshot as JSON under cart:<user_id>
// without an expiry, so a cart survives until it is cleared.
type redisCartRepository struct {
	cache *cache.RedisCache
}

func NewRedisCartRepository(c *cache.RedisCache) CartSnapshotRepository {
	return &redisCartRepository{cache: c}
}

func (r *redisCartRepository) Load(ctx context.Context, userID string) (*models.CartSnapshot, error) {
	var snapshot models.CartSnapshot
	err := r.cache.Get(ctx, cartKeyPrefix+userID, &snapshot)
	switch {
	case err == nil:
		if len(snapshot.Items) == 0 {
			snapshot.Items = nil
		}
		return &snapshot, nil
	case errors.Is(err, cache.ErrCacheMiss):
		return nil, nil
	case errors.Is(err, cache.ErrUndecodable):
		log.Printf("Discarding unreadable cart for user %s: %v", userID, err)
		return nil, nil
	default:
		return nil, err
	}
}

func (r *redisCartRepository) Save(ctx context.Context, userID string, snapshot *models.CartSnapshot) error {
	return r.cache.Set(ctx, cartKeyPrefix+userID, snapshot, 0)
}
