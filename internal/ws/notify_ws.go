package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messaging-service/internal/directory"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// NotificationStreamHandler pushes a user's notifications over a
// websocket as they are created. The caller only ever receives their
// own feed; the token decides whose.
type NotificationStreamHandler struct {
	hub      *Hub
	verifier directory.TokenVerifier
	log      *zap.SugaredLogger
}

func NewNotificationStreamHandler(hub *Hub, verifier directory.TokenVerifier, log *zap.SugaredLogger) *NotificationStreamHandler {
	return &NotificationStreamHandler{hub: hub, verifier: verifier, log: log}
}

func (h *NotificationStreamHandler) Handle(c *gin.Context) {
	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}
	parts := strings.SplitN(token, " ", 2)
	if len(parts) != 2 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	ident, err := h.verifier.Verify(c.Request.Context(), parts[1])
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	sc := &streamConn{conn: conn}
	connID := newConnID()
	connectedAt := time.Now()

	observability.IncWSActive("notifications")
	observability.IncWSEvent("notifications", "ws_connect")

	sub := h.hub.SubscribeUser(ident.UserID, func(n models.Notification) {
		payload, err := json.Marshal(n)
		if err != nil {
			return
		}
		sc.mu.Lock()
		defer sc.mu.Unlock()
		if err := sc.conn.WriteMessage(websocket.TextMessage, payload); err != nil && h.log != nil {
			h.log.Debugw("notification write failed", "conn_id", connID, "error", err)
		}
	})

	go func() {
		defer func() {
			sub.Close()
			observability.DecWSActive("notifications")
			observability.IncWSEvent("notifications", "ws_disconnect")
			conn.Close()
			if h.log != nil {
				h.log.Debugw("notification stream closed",
					"conn_id", connID,
					"user_id", ident.UserID,
					"duration_ms", time.Since(connectedAt).Milliseconds())
			}
		}()
		// Drain until the client hangs up; the feed is write-only.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
