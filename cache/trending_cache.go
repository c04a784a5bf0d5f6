package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voicewave/model"

	"github.com/redis/go-redis/v9"
)

// TrendingCache stores the computed trending listing as a JSON payload
// with a short TTL so repeated requests don't re-run the aggregation.
type TrendingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTrendingCache creates a trending cache. A non-positive ttl disables it.
func NewTrendingCache(client *redis.Client, ttl time.Duration) *TrendingCache {
	return &TrendingCache{client: client, ttl: ttl}
}

func trendingKey(limit, windowDays int) string {
	return fmt.Sprintf("trending:%d:%d", limit, windowDays)
}

// Get returns the cached trending listing, or (nil, nil) on a miss.
func (c *TrendingCache) Get(ctx context.Context, limit, windowDays int) ([]*model.Audio, error) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil, nil
	}

	payload, err := c.client.Get(ctx, trendingKey(limit, windowDays)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trending cache: %w", err)
	}

	var audios []*model.Audio
	if err := json.Unmarshal(payload, &audios); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trending cache: %w", err)
	}
	return audios, nil
}

// Set stores the trending listing.
func (c *TrendingCache) Set(ctx context.Context, limit, windowDays int, audios []*model.Audio) error {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(audios)
	if err != nil {
		return fmt.Errorf("failed to marshal trending cache: %w", err)
	}

	if err := c.client.Set(ctx, trendingKey(limit, windowDays), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set trending cache: %w", err)
	}
	return nil
}

// Invalidate drops all cached trending listings. Called after writes that
// can change the ranking (new audio, like toggle, comment, delete).
func (c *TrendingCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil
	}

	iter := c.client.Scan(ctx, 0, "trending:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to invalidate trending cache: %w", err)
		}
	}
	return iter.Err()
}
