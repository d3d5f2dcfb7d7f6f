// Package ws реализует рассылку обновлений панели подключённым клиентам
// по WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Панель и сервис раздаются с одного хоста, отдельной проверки
		// origin не требуется.
		return true
	},
}

// Hub управляет набором WebSocket-соединений и широковещательной рассылкой.
type Hub struct {
	logger *zap.Logger

	mu        sync.RWMutex
	clients   map[*websocket.Conn]struct{}
	broadcast chan []byte
}

// NewHub создаёт пустой хаб. Рассылку запускает Run.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:    logger,
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan []byte, 256),
	}
}

// Run обслуживает очередь рассылки до отмены контекста.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.broadcast:
			h.mu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				conns = append(conns, conn)
			}
			h.mu.RUnlock()

			for _, conn := range conns {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.removeClient(conn)
				}
			}
		}
	}
}

// Broadcast ставит сообщение в очередь рассылки. При переполненной очереди
// сообщение отбрасывается: клиенты получат следующее состояние.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
	}
}

// BroadcastJSON сериализует значение и рассылает его всем клиентам.
func (h *Hub) BroadcastJSON(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("marshal broadcast message", zap.Error(err))
		return
	}
	h.Broadcast(msg)
}

// ClientCount возвращает число подключённых клиентов.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP переводит соединение в WebSocket и держит его до разрыва.
// Входящие сообщения клиентов игнорируются, канал используется только
// для доставки обновлений.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.addClient(conn)
	defer h.removeClient(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}
