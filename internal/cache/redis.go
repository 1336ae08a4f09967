package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/valetmatch/valetmatch/config"
	"github.com/valetmatch/valetmatch/internal/domain"
)

// RedisCache fronts the eligible-valeter directory lookups. It is a read-side
// accelerator only; booking state never lives here.
type RedisCache struct {
	client       *redis.Client
	directoryTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, directoryTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:       redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		directoryTTL: directoryTTL,
	}
}

func (c *RedisCache) GetEligible(ctx context.Context, area string, tier domain.ServiceTier, location domain.ServiceLocation) ([]domain.Valeter, error) {
	data, err := c.client.Get(ctx, directoryKey(area, tier, location)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var valeters []domain.Valeter
	if err := json.Unmarshal(data, &valeters); err != nil {
		return nil, err
	}
	return valeters, nil
}

func (c *RedisCache) SetEligible(ctx context.Context, area string, tier domain.ServiceTier, location domain.ServiceLocation, valeters []domain.Valeter) error {
	payload, err := json.Marshal(valeters)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, directoryKey(area, tier, location), payload, c.directoryTTL).Err()
}

func directoryKey(area string, tier domain.ServiceTier, location domain.ServiceLocation) string {
	return fmt.Sprintf("directory:%s:%s:%s", area, tier, location)
}
