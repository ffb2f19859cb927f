// Package redis предоставляет кэш политик обнаружения дублей поверх Redis.
// Кэш работает по схеме read-through: при промахе политика читается из
// основного хранилища (PostgreSQL) и сохраняется в Redis с ограниченным TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/YusovID/order-dedup/internal/config"
	"github.com/YusovID/order-dedup/internal/models"
	"github.com/YusovID/order-dedup/lib/logger/sl"
)

const keyPrefix = "dedup:policy:"

// Client является оберткой над стандартным клиентом `redis.Client`.
type Client struct {
	*redis.Client
}

// PolicySource - основное хранилище политик. Отсутствие политики
// обозначается парой (nil, nil).
type PolicySource interface {
	Policy(ctx context.Context, sellerID string) (*models.DetectionPolicy, error)
}

// New создает клиент Redis и проверяет соединение командой PING.
func New(ctx context.Context, cfg config.Redis) (*Client, error) {
	address := net.JoinHostPort(cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("can't ping redis: %v", err)
	}

	return &Client{client}, nil
}

// PolicyCache реализует detector.PolicyReader. Недоступность Redis не
// является ошибкой: в этом случае политика читается напрямую из source.
type PolicyCache struct {
	client *Client
	source PolicySource
	ttl    time.Duration
	log    *slog.Logger
}

func NewPolicyCache(client *Client, source PolicySource, ttl time.Duration, log *slog.Logger) *PolicyCache {
	return &PolicyCache{
		client: client,
		source: source,
		ttl:    ttl,
		log:    log,
	}
}

func policyKey(sellerID string) string {
	return keyPrefix + sellerID
}

// Policy возвращает политику продавца. Отсутствующая политика тоже
// кэшируется (как JSON "null"), чтобы не ходить в базу на каждый заказ.
func (c *PolicyCache) Policy(ctx context.Context, sellerID string) (*models.DetectionPolicy, error) {
	const fn = "storage.redis.Policy"

	log := c.log.With(slog.String("fn", fn), slog.String("seller_id", sellerID))

	raw, err := c.client.Get(ctx, policyKey(sellerID)).Bytes()
	switch {
	case err == nil:
		var policy *models.DetectionPolicy
		if err := json.Unmarshal(raw, &policy); err == nil {
			return policy, nil
		}

		log.Warn("cached policy is corrupted, reloading")

	case errors.Is(err, redis.Nil):
		// промах кэша

	default:
		log.Warn("policy cache is unavailable", sl.Err(err))
	}

	policy, err := c.source.Policy(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("%s: can't load policy: %w", fn, err)
	}

	c.store(ctx, log, sellerID, policy)

	return policy, nil
}

func (c *PolicyCache) store(ctx context.Context, log *slog.Logger, sellerID string, policy *models.DetectionPolicy) {
	raw, err := json.Marshal(policy)
	if err != nil {
		log.Warn("can't marshal policy", sl.Err(err))
		return
	}

	if err := c.client.Set(ctx, policyKey(sellerID), raw, c.ttl).Err(); err != nil {
		log.Warn("can't cache policy", sl.Err(err))
	}
}

// Invalidate удаляет политику продавца из кэша. Вызывается после
// изменения политики, чтобы следующий заказ увидел новую версию.
func (c *PolicyCache) Invalidate(ctx context.Context, sellerID string) error {
	const fn = "storage.redis.Invalidate"

	if err := c.client.Del(ctx, policyKey(sellerID)).Err(); err != nil {
		return fmt.Errorf("%s: can't delete policy: %w", fn, err)
	}

	return nil
}
