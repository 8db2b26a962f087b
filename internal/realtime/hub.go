// Package realtime はランチ変更イベントをWebSocketで配信するハブを提供する。
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/lunchmate/internal/metrics"
	"github.com/hitoshi/lunchmate/internal/middleware"
	"github.com/hitoshi/lunchmate/internal/model"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	sendBuffer   = 16
)

// Hub は接続中のクライアントにランチ変更イベントを配信する。
// 送信待ちが溢れたクライアントは切断する。
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// NewHub はHubを生成する。allowedOriginsはCORSと同じカンマ区切りの許可リストで、
// 空の場合はOriginを検証しない。Originヘッダーのない非ブラウザクライアントは常に許可する。
func NewHub(allowedOrigins string, mc metrics.MetricsCollector, logger *slog.Logger) *Hub {
	allowed := middleware.ParseAllowedOrigins(allowedOrigins)
	h := &Hub{
		clients: make(map[*client]struct{}),
		metrics: metrics.OrNop(mc),
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || origin == "" || middleware.OriginAllowed(allowed, origin)
		},
	}
	return h
}

// Publish はイベントを全クライアントに配信する。ブロックしない。
func (h *Hub) Publish(event model.LunchEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("イベントのシリアライズに失敗しました", slog.String("error", err.Error()))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("送信待ちが溢れたため切断します", slog.String("remote", c.conn.RemoteAddr().String()))
		h.unregister(c)
	}
}

// ClientCount は接続中のクライアント数を返す。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS はWebSocketへのアップグレードを行い、切断されるまでイベントを配信する。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeがエラーレスポンスを書き込み済み
		h.logger.Info("WebSocketへのアップグレードに失敗しました", slog.String("error", err.Error()))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetRealtimeClients(n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.SetRealtimeClients(n)
	}
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump はクライアントからの切断を検知する。受信メッセージは読み捨てる。
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
