package events

import (
	"time"

	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

// QuoteUpdate é a cotação corrente (já mesclada por código de fator) de um evento.
// Vai para o Redis (odds:current:{id}) e para o WebSocket via Pub/Sub.
type QuoteUpdate struct {
	EventID   string        `json:"event_id"`
	Team1     string        `json:"team1,omitempty"`
	Team2     string        `json:"team2,omitempty"`
	Quotes    domain.Quotes `json:"quotes"`
	UpdatedAt time.Time     `json:"updated_at"`
	Version   int64         `json:"version"` // packetVersion em que a mudança chegou
}
