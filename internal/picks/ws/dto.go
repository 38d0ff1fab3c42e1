package ws

import "encoding/json"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// EventID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type    string `json:"type"`
	EventID string `json:"eventId"`
}

// QuoteUpdate é o envelope publicado pelo feed-ingest no canal de broadcast.
// Payload segue opaco até o cliente.
type QuoteUpdate struct {
	EventID string          `json:"eventId"`
	Payload json.RawMessage `json:"payload"`
}
