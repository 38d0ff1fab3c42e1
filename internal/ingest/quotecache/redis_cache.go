// Package quotecache mantém no Redis a cotação corrente de cada evento e
// faz o broadcast das mudanças via Pub/Sub para o WebSocket do picks-service.
package quotecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sports-picks-engine/pkg/contracts/events"
)

// redisClient é o subconjunto do *redis.Client usado pelo cache
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisCache encapsula operações de cache de cotações no Redis
// TTL: tempo de expiração dos registros
// Channel: canal Pub/Sub do broadcast
type RedisCache struct {
	client  redisClient
	ttl     time.Duration
	channel string
}

// NewRedisCache cria o cache com TTL e canal configuráveis
func NewRedisCache(c redisClient, ttl time.Duration, channel string) *RedisCache {
	return &RedisCache{client: c, ttl: ttl, channel: channel}
}

// Key gera a chave Redis da cotação atual de um evento
func Key(eventID string) string { return "odds:current:" + eventID }

// SetCurrent grava a cotação atual do evento com TTL
func (r *RedisCache) SetCurrent(ctx context.Context, q events.QuoteUpdate) error {
	b, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, Key(q.EventID), b, r.ttl).Err()
}

// GetCurrent lê a cotação atual; ok=false quando a chave não existe ou expirou
func (r *RedisCache) GetCurrent(ctx context.Context, eventID string) (events.QuoteUpdate, bool, error) {
	var q events.QuoteUpdate
	b, err := r.client.Get(ctx, Key(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return q, false, nil
	}
	if err != nil {
		return q, false, err
	}
	if err := json.Unmarshal(b, &q); err != nil {
		return q, false, fmt.Errorf("decode cached quote %s: %w", eventID, err)
	}
	return q, true, nil
}

// Delete remove a cotação de um evento deletado pelo feed
func (r *RedisCache) Delete(ctx context.Context, eventID string) error {
	return r.client.Del(ctx, Key(eventID)).Err()
}

// HandleChange atualiza o cache a partir do canal de mudanças do stream;
// demais tipos de registro são ignorados
func (r *RedisCache) HandleChange(ctx context.Context, c events.Change) error {
	switch c.Kind {
	case events.ChangeQuote:
		if c.Quote == nil {
			return nil
		}
		if err := r.SetCurrent(ctx, *c.Quote); err != nil {
			return fmt.Errorf("set current quote: %w", err)
		}
		return r.Broadcast(ctx, *c.Quote)
	case events.ChangeDelete:
		return r.Delete(ctx, c.Key)
	default:
		return nil
	}
}
