// Package ws streams engine events to WebSocket clients.
package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/forgeide/pkgsync/internal/domain/sync"
	"github.com/forgeide/pkgsync/internal/infrastructure/logging"
	"github.com/forgeide/pkgsync/internal/infrastructure/monitoring"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades connections and forwards engine events to each client.
// Clients are read-only: inbound frames other than control messages are
// discarded.
type Handler struct {
	hub     *sync.Hub
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates the event-stream handler.
func NewHandler(hub *sync.Hub, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{hub: hub, log: log, metrics: metrics}
}

// HandleConnection upgrades the request and streams events until the client
// disconnects or the request context dies.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	// The read pump only services control frames and surfaces disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := sonic.Marshal(event)
			if err != nil {
				h.log.Error("failed to encode event", zap.Error(err))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
