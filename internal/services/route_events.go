package services

import (
	"context"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RoutesIndexedChannel канал Redis с идентификаторами новых маршрутов
const RoutesIndexedChannel = "routes:indexed"

// RedisRouteEvents синхронизирует индексы маршрутов между экземплярами через Redis pub/sub
type RedisRouteEvents struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisRouteEvents(client *redis.Client, log *zap.Logger) *RedisRouteEvents {
	return &RedisRouteEvents{client: client, log: log.Named("route_events")}
}

func (e *RedisRouteEvents) PublishIndexed(ctx context.Context, routeID string) error {
	return e.client.Publish(ctx, RoutesIndexedChannel, routeID).Err()
}

// Subscribe вызывает handler для каждого опубликованного маршрута до отмены ctx.
// Возвращается после подтверждения подписки.
func (e *RedisRouteEvents) Subscribe(ctx context.Context, handler func(ctx context.Context, routeID string)) error {
	pubsub := e.client.Subscribe(ctx, RoutesIndexedChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(ctx, msg.Payload)
			}
		}
	}()

	e.log.Info("Подписка на новые маршруты", zap.String("channel", RoutesIndexedChannel))
	return nil
}
