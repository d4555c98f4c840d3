package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	mealTitlePrefix   = "meal:title:"
	negCacheKeySuffix = ":neg"

	// MealTitleTTL is the TTL for cached meal titles.
	MealTitleTTL = 6 * time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 5 * time.Minute
)

func mealTitleKey(mealID string) string {
	return mealTitlePrefix + mealID
}

// GetMealTitle returns a cached title or ErrCacheMiss.
func (c *Cache) GetMealTitle(ctx context.Context, mealID string) (string, error) {
	title, err := c.client.Get(ctx, mealTitleKey(mealID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return title, nil
}

// SetMealTitle caches a title and clears any negative entry.
func (c *Cache) SetMealTitle(ctx context.Context, mealID, title string) error {
	key := mealTitleKey(mealID)

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, title, MealTitleTTL)
	pipe.Del(ctx, key+negCacheKeySuffix)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache meal title: %w", err)
	}
	return nil
}

// DeleteMealTitle removes both the positive and negative entries.
func (c *Cache) DeleteMealTitle(ctx context.Context, mealID string) error {
	key := mealTitleKey(mealID)
	if err := c.client.Del(ctx, key, key+negCacheKeySuffix).Err(); err != nil {
		return fmt.Errorf("failed to delete meal title from cache: %w", err)
	}
	return nil
}

// IsMealTitleMissing reports whether the meal is negatively cached.
func (c *Cache) IsMealTitleMissing(ctx context.Context, mealID string) (bool, error) {
	n, err := c.client.Exists(ctx, mealTitleKey(mealID)+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}
	return n > 0, nil
}

// SetMealTitleMissing marks a meal as missing or deleted.
func (c *Cache) SetMealTitleMissing(ctx context.Context, mealID string) error {
	err := c.client.SetEx(ctx, mealTitleKey(mealID)+negCacheKeySuffix, "", NegativeCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}
