package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carpool-backend/internal/geo"

	"github.com/go-redis/redis/v8"
)

// CacheService кэш результатов поиска маршрутов поблизости
type CacheService struct {
	redisClient *redis.Client
	ttl         time.Duration
	enabled     bool
}

// NewCacheService создает сервис кэширования; при nil клиенте кэш выключен
func NewCacheService(client *redis.Client, ttl time.Duration, enabled bool) *CacheService {
	if client == nil || !enabled {
		return &CacheService{enabled: false}
	}
	return &CacheService{
		redisClient: client,
		ttl:         ttl,
		enabled:     true,
	}
}

func (c *CacheService) Enabled() bool {
	return c.enabled
}

// Get получает данные из кэша
func (c *CacheService) Get(ctx context.Context, key string, result interface{}) (bool, error) {
	if !c.enabled {
		return false, nil
	}

	val, err := c.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("ошибка при получении данных из кэша: %w", err)
	}

	if err := json.Unmarshal([]byte(val), result); err != nil {
		return false, fmt.Errorf("ошибка при десериализации данных из кэша: %w", err)
	}

	return true, nil
}

// Set сохраняет данные в кэш
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ошибка при сериализации данных для кэша: %w", err)
	}

	if err := c.redisClient.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка при сохранении данных в кэш: %w", err)
	}

	return nil
}

// NearbyCellKey ключ кандидатов поиска вокруг ячейки геохеша.
// snapshot отпечаток локального индекса: экземпляр, еще не получивший новый маршрут,
// читает и пишет только под своим отпечатком.
func (c *CacheService) NearbyCellKey(snapshot uint64, cell string, maxDistance float64) string {
	return fmt.Sprintf("nearby:%x:%s:%g", snapshot, cell, maxDistance)
}

// NearbyBothKey ключ для поиска по точкам посадки и назначения
func (c *CacheService) NearbyBothKey(snapshot uint64, pickup, dest geo.Point, maxDistance float64, limit int, departure time.Time) string {
	return fmt.Sprintf("nearbyboth:%x:%g:%g:%g:%g:%g:%d:%d",
		snapshot, pickup.Lng, pickup.Lat, dest.Lng, dest.Lat, maxDistance, limit, departure.Unix())
}
