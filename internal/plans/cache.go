package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ScheduleCache caches resolved payment-plan schedules per product.
type ScheduleCache interface {
	Get(ctx context.Context, productID int64) (domain.PaymentPlanSchedule, error)
	Set(ctx context.Context, productID int64, schedule domain.PaymentPlanSchedule) error
	Delete(ctx context.Context, productID int64) error
}

var ErrCacheMiss = errors.New("cache miss")

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context, productID int64) (domain.PaymentPlanSchedule, error) {
	key := cacheKey(productID)

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var schedule domain.PaymentPlanSchedule
	if err2 := json.Unmarshal(data, &schedule); err2 != nil {
		return nil, fmt.Errorf("unmarshal schedule failed: %w", err2)
	}

	return schedule, nil
}

func (r RedisCache) Set(ctx context.Context, productID int64, schedule domain.PaymentPlanSchedule) error {
	key := cacheKey(productID)
	data, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	if ret := r.client.Set(ctx, key, string(data), ttl); ret.Err() != nil {
		return fmt.Errorf("redis set failed: %w", ret.Err())
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, productID int64) error {
	if err := r.client.Del(ctx, cacheKey(productID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(productID int64) string {
	return fmt.Sprintf("plans:%d", productID)
}
