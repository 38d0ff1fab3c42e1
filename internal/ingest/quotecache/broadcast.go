package quotecache

import (
	"context"
	"encoding/json"

	"github.com/radieske/sports-picks-engine/pkg/contracts/events"
)

// WSUpdate é o payload padrão para o WebSocket do picks-service
type WSUpdate struct {
	EventID string             `json:"eventId"`
	Payload events.QuoteUpdate `json:"payload"`
}

// Broadcast publica a cotação no canal Pub/Sub configurado
func (r *RedisCache) Broadcast(ctx context.Context, q events.QuoteUpdate) error {
	b, err := json.Marshal(WSUpdate{EventID: q.EventID, Payload: q})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, b).Err()
}
