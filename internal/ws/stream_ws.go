package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messaging-service/internal/directory"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/typing"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamConn serializes writes to one websocket connection.
type streamConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *streamConn) writeEvent(event models.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// ConversationStreamHandler upgrades clients onto a conversation's live
// stream: a backlog snapshot first, then message added/changed and typing
// events. All listeners registered for the connection are released when
// it drops, and any typing signal the user left behind is cleared.
type ConversationStreamHandler struct {
	hub      *Hub
	convRepo repositories.ConversationRepository
	msgRepo  repositories.MessageRepository
	verifier directory.TokenVerifier
	typing   *typing.Coordinator
	log      *zap.SugaredLogger
}

// NewConversationStreamHandler constructs a ConversationStreamHandler.
func NewConversationStreamHandler(hub *Hub, convRepo repositories.ConversationRepository, msgRepo repositories.MessageRepository, verifier directory.TokenVerifier, typingCoord *typing.Coordinator, log *zap.SugaredLogger) *ConversationStreamHandler {
	return &ConversationStreamHandler{
		hub:      hub,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		verifier: verifier,
		typing:   typingCoord,
		log:      log,
	}
}

// Handle upgrades the connection and wires the subscriptions.
func (h *ConversationStreamHandler) Handle(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ident, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, ident.UserID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for conversation"})
		return
	}

	backlog, err := h.msgRepo.ListForConversation(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	sc := &streamConn{conn: conn}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      ident.UserID,
		UserName:    ident.DisplayName,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	observability.IncWSActive("conversation")
	observability.IncWSEvent("conversation", "ws_connect")
	h.publishEvent(ctx, conversationID, info, "ws_connect", "")

	if err := sc.writeEvent(models.StreamEvent{Type: models.EventSnapshot, Messages: backlog}); err != nil {
		h.teardown(conversationID, info, sc, nil, nil, "snapshot write failed")
		return
	}

	sub := h.hub.Subscribe(conversationID,
		func(msg models.Message) {
			if err := sc.writeEvent(models.StreamEvent{Type: models.EventMessageAdded, Message: &msg}); err != nil && h.log != nil {
				h.log.Debugw("stream write failed", "conn_id", info.ConnID, "error", err)
			}
		},
		func(msg models.Message) {
			if err := sc.writeEvent(models.StreamEvent{Type: models.EventMessageChanged, Message: &msg}); err != nil && h.log != nil {
				h.log.Debugw("stream write failed", "conn_id", info.ConnID, "error", err)
			}
		},
	)
	typingSub := h.hub.ListenTyping(conversationID, func(signal models.TypingSignal) {
		if signal.UserID == ident.UserID {
			return
		}
		if err := sc.writeEvent(models.StreamEvent{Type: models.EventTyping, Typing: &signal}); err != nil && h.log != nil {
			h.log.Debugw("stream write failed", "conn_id", info.ConnID, "error", err)
		}
	})

	if h.typing != nil {
		h.typing.Touch(context.Background(), ident.UserID, time.Minute)
	}

	go h.readLoop(ctx, conversationID, ident, info, sc, sub, typingSub)
}

type clientFrame struct {
	Type      string `json:"type"`
	IsTyping  bool   `json:"is_typing"`
	MessageID string `json:"message_id"`
}

// readLoop consumes client frames until the connection drops. Clients
// push typing state and delivery acks here; everything else arrives over
// the REST surface.
func (h *ConversationStreamHandler) readLoop(ctx context.Context, conversationID string, ident directory.Identity, info ConnInfo, sc *streamConn, sub *Subscription, typingSub *TypingSubscription) {
	var closeReason string
	defer func() {
		h.teardown(conversationID, info, sc, sub, typingSub, closeReason)
		if h.typing != nil {
			h.typing.Disconnect(conversationID, ident.UserID, ident.DisplayName)
			h.typing.Offline(context.Background(), ident.UserID)
		}
	}()

	for {
		_, payload, err := sc.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("conversation", "ws_error")
				h.publishEvent(ctx, conversationID, info, "ws_error", closeReason)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case "typing":
			if h.typing != nil {
				_ = h.typing.Set(context.Background(), conversationID, ident.UserID, ident.DisplayName, frame.IsTyping)
			}
		case "delivered":
			h.ackDelivered(conversationID, frame.MessageID)
		}
	}
}

func (h *ConversationStreamHandler) ackDelivered(conversationID, messageID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	applied, err := h.msgRepo.AdvanceStatus(ctx, messageID, models.StatusDelivered)
	if err != nil {
		if h.log != nil {
			h.log.Warnw("delivery ack failed", "message_id", messageID, "error", err)
		}
		return
	}
	if !applied {
		// The status is already delivered or read; nothing to announce.
		return
	}
	msg, err := h.msgRepo.Get(ctx, conversationID, messageID)
	if err != nil {
		return
	}
	h.hub.BroadcastMessageChanged(msg)
}

func (h *ConversationStreamHandler) teardown(conversationID string, info ConnInfo, sc *streamConn, sub *Subscription, typingSub *TypingSubscription, reason string) {
	if sub != nil {
		sub.Close()
	}
	if typingSub != nil {
		typingSub.Close()
	}
	observability.DecWSActive("conversation")
	observability.IncWSEvent("conversation", "ws_disconnect")
	h.publishEvent(context.Background(), conversationID, info, "ws_disconnect", reason)
	sc.conn.Close()
}

func (h *ConversationStreamHandler) publishEvent(ctx context.Context, conversationID string, info ConnInfo, event, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.conversations",
		observability.NewEnvelope("ws_events", event, map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":            "conversation",
				"conversation_id": conversationID,
				"event":           event,
				"conn_id":         info.ConnID,
				"duration_ms":     time.Since(info.ConnectedAt).Milliseconds(),
				"reason":          reason,
			},
			"identity": map[string]interface{}{
				"user_id": info.UserID,
				"ip":      info.IP,
			},
		}), observability.BuildHeaders(info.RequestID, info.TraceID))
}

func (h *ConversationStreamHandler) authenticate(c *gin.Context) (directory.Identity, error) {
	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}
	parts := strings.SplitN(token, " ", 2)
	if len(parts) != 2 {
		return directory.Identity{}, fmt.Errorf("invalid token")
	}
	return h.verifier.Verify(c.Request.Context(), parts[1])
}
