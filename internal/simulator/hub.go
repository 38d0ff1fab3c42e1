package simulator

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/ingest/feed"
)

// clientConn representa um cliente WebSocket conectado
type clientConn struct {
	id   string
	conn *websocket.Conn
}

// HubHooks alimentam as métricas de conexões e mensagens
type HubHooks struct {
	OnConnect    func()
	OnDisconnect func()
	OnSent       func()
}

// Hub gerencia os clientes WebSocket e faz broadcast do delta de cada tick
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[string]*clientConn
	seq      int64
	log      *zap.Logger
	hooks    HubHooks
}

func NewHub(log *zap.Logger, hooks HubHooks) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*clientConn),
		log:     log,
		hooks:   hooks,
	}
}

// HandleWS registra o cliente e descarta o que ele enviar até desconectar
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.seq++
	c := &clientConn{id: strconv.FormatInt(h.seq, 10), conn: conn}
	h.clients[c.id] = c
	h.mu.Unlock()
	if h.hooks.OnConnect != nil {
		h.hooks.OnConnect()
	}
	h.log.Info("ws client connected", zap.String("client_id", c.id))

	go func() {
		defer h.remove(c.id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if !ok {
		return
	}
	_ = c.conn.Close()
	if h.hooks.OnDisconnect != nil {
		h.hooks.OnDisconnect()
	}
	h.log.Info("ws client disconnected", zap.String("client_id", id))
}

// Clients devolve quantos clientes estão conectados
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast envia o pacote para todos; cliente com falha de escrita é removido
func (h *Hub) Broadcast(p feed.Packet) {
	msg, err := json.Marshal(toWire(p))
	if err != nil {
		h.log.Warn("ws marshal failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*clientConn, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", c.id), zap.Error(err))
			h.remove(c.id)
			continue
		}
		if h.hooks.OnSent != nil {
			h.hooks.OnSent()
		}
	}
}
