package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartRedisSubscriber escuta o canal de broadcast de cotações e repassa cada
// mensagem ao Hub. Encerra quando ctx é cancelado.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				Dispatch(hub, []byte(msg.Payload), log)
			}
		}
	}()
}

// Dispatch decodifica uma mensagem do canal e faz o broadcast
func Dispatch(hub *Hub, payload []byte, log *zap.Logger) {
	var upd QuoteUpdate
	if err := json.Unmarshal(payload, &upd); err != nil || upd.EventID == "" {
		log.Warn("ws subscriber bad message", zap.Error(err))
		return
	}
	hub.Broadcast(upd)
}
