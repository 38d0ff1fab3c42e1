package events

import (
	"encoding/json"
	"time"

	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

// ChangeKind identifica o tipo do registro de mudança publicado em "feed_changes"
type ChangeKind string

const (
	ChangeSport  ChangeKind = "sport"
	ChangeEvent  ChangeKind = "event"
	ChangeMarket ChangeKind = "market"
	ChangeQuote  ChangeKind = "quote"
	ChangeDelete ChangeKind = "delete"
	ChangeCycle  ChangeKind = "cycle"
)

// Change é o envelope emitido pelo feed-ingest; só o campo do Kind correspondente vem preenchido.
// Key é usada como chave da mensagem Kafka (mesmo objeto -> mesma partição).
type Change struct {
	Kind          ChangeKind `json:"kind"`
	Key           string     `json:"key"`
	PacketVersion int64      `json:"packet_version"`
	EmittedAt     time.Time  `json:"emitted_at"`

	Sport  *SportChange    `json:"sport,omitempty"`
	Event  *EventChange    `json:"event,omitempty"`
	Market json.RawMessage `json:"market,omitempty"`
	Quote  *QuoteUpdate    `json:"quote,omitempty"`
	Cycle  *CycleSummary   `json:"cycle,omitempty"`
}

// SportChange descreve um nó da taxonomia; Sport/Tournament só para segmentos admitidos
type SportChange struct {
	ID         int64  `json:"id"`
	ParentID   int64  `json:"parent_id,omitempty"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	Sport      string `json:"sport,omitempty"`
	Tournament string `json:"tournament,omitempty"`
}

// EventChange é a identidade de uma partida; Persisted indica que entrou na tabela events
type EventChange struct {
	ID         string        `json:"id"`
	Sport      string        `json:"sport"`
	Tournament string        `json:"tournament"`
	Team1      string        `json:"team1"`
	Team2      string        `json:"team2"`
	StartTime  int64         `json:"start_time"`
	Quotes     domain.Quotes `json:"quotes"`
	Persisted  bool          `json:"persisted"`
}

// CycleSummary resume um pacote processado
type CycleSummary struct {
	CycleID       string `json:"cycle_id"`
	Sports        int    `json:"sports"`
	Events        int    `json:"events"`
	Markets       int    `json:"markets"`
	Quotes        int    `json:"quotes"`
	Deleted       int    `json:"deleted"`
	Persisted     int    `json:"persisted"`
	Deferred      int    `json:"deferred"`
	Skipped       int    `json:"skipped"`
	PacketVersion int64  `json:"packet_version"`
}
