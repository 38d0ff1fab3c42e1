package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 2 * time.Second

// conn serializa as escritas: gorilla aceita um único writer por conexão
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *conn) writeRaw(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas de cotações por evento
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	mu       sync.RWMutex
	// eventID -> conexões inscritas
	subs map[string]map[*conn]struct{}
}

// NewHub cria o hub com política de origem customizada
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		subs:     make(map[string]map[*conn]struct{}),
	}
}

// HandleWS atende uma conexão: subscribe/unsubscribe por eventId e ping
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := &conn{ws: ws}
	defer func() {
		h.drop(c)
		_ = ws.Close()
	}()

	for {
		var msg ClientMsg
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.EventID == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.EventID]; !ok {
				h.subs[msg.EventID] = make(map[*conn]struct{})
			}
			h.subs[msg.EventID][c] = struct{}{}
			h.mu.Unlock()
			_ = c.writeJSON(map[string]string{"type": "subscribed", "eventId": msg.EventID})
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.EventID]; ok {
				delete(m, c)
				if len(m) == 0 {
					delete(h.subs, msg.EventID)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = c.writeJSON(map[string]string{"type": "pong"})
		}
	}
}

// drop remove a conexão de todas as assinaturas
func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

// Subscribers conta as conexões inscritas num evento
func (h *Hub) Subscribers(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[eventID])
}

// Broadcast envia a atualização a todos os inscritos no eventID
func (h *Hub) Broadcast(update QuoteUpdate) {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.subs[update.EventID]))
	for c := range h.subs[update.EventID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		h.log.Error("ws marshal failed", zap.Error(err))
		return
	}
	for _, c := range conns {
		if err := c.writeRaw(b); err != nil {
			h.log.Debug("ws write failed", zap.String("event_id", update.EventID), zap.Error(err))
		}
	}
}
