package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-feedback-bot/internal/domain"
	"tg-feedback-bot/internal/infra/metrics"
)

// RedisLimiter реализует domain.RateLimiter через билеты с TTL.
type RedisLimiter struct {
	client   *redis.Client
	cooldown time.Duration
}

var _ domain.RateLimiter = (*RedisLimiter)(nil)

// NewRedisLimiter создаёт лимитер с указанным окном охлаждения.
func NewRedisLimiter(client *redis.Client, cooldown time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, cooldown: cooldown}
}

func ticketKey(tgUserID int64) string {
	return fmt.Sprintf("rl:msg_to_author:%d", tgUserID)
}

// TryAdmit атомарно занимает билет через SET NX EX: из конкурентных
// вызовов для одного пользователя внутри окна успешен не более одного.
func (l *RedisLimiter) TryAdmit(ctx context.Context, tgUserID int64) (bool, error) {
	start := time.Now()
	ok, err := l.client.SetNX(ctx, ticketKey(tgUserID), "1", l.cooldown).Result()
	metrics.ObserveNetworkRequest("redis", "rate_limit_admit", "tickets", start, err)
	if err != nil {
		return false, fmt.Errorf("занятие билета: %w", err)
	}
	return ok, nil
}

// RemainingCooldown возвращает время до следующего допуска.
// Отсутствующий или истёкший билет означает ноль.
func (l *RedisLimiter) RemainingCooldown(ctx context.Context, tgUserID int64) (time.Duration, error) {
	start := time.Now()
	ttl, err := l.client.PTTL(ctx, ticketKey(tgUserID)).Result()
	metrics.ObserveNetworkRequest("redis", "rate_limit_ttl", "tickets", start, err)
	if err != nil {
		return 0, fmt.Errorf("чтение TTL билета: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
