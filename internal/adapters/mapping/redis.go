package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-feedback-bot/internal/domain"
	"tg-feedback-bot/internal/infra/metrics"
)

// RedisStore хранит связки пересланных копий с исходными пользователями.
// Записи — летучие маршрутные метаданные: срок жизни ограничен TTL,
// истёкшая связка штатно разрешается в domain.ErrRouteNotFound.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.RouteStore = (*RedisStore)(nil)

// NewRedisStore создаёт хранилище с указанным сроком хранения связок.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func routeKey(chatID int64, messageID int) string {
	return fmt.Sprintf("route:%d:%d", chatID, messageID)
}

// Remember записывает связку. Повторная запись того же ключа допустима.
func (s *RedisStore) Remember(ctx context.Context, chatID int64, messageID int, route domain.Route) error {
	payload, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("кодирование маршрута: %w", err)
	}
	start := time.Now()
	err = s.client.Set(ctx, routeKey(chatID, messageID), payload, s.ttl).Err()
	metrics.ObserveNetworkRequest("redis", "route_remember", "routes", start, err)
	if err != nil {
		return fmt.Errorf("сохранение маршрута: %w", err)
	}
	return nil
}

// Resolve возвращает связку для пересланной копии.
func (s *RedisStore) Resolve(ctx context.Context, chatID int64, messageID int) (domain.Route, error) {
	start := time.Now()
	payload, err := s.client.Get(ctx, routeKey(chatID, messageID)).Bytes()
	metrics.ObserveNetworkRequest("redis", "route_resolve", "routes", start, err)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Route{}, domain.ErrRouteNotFound
		}
		return domain.Route{}, fmt.Errorf("чтение маршрута: %w", err)
	}
	var route domain.Route
	if err := json.Unmarshal(payload, &route); err != nil {
		return domain.Route{}, fmt.Errorf("декодирование маршрута: %w", err)
	}
	return route, nil
}
