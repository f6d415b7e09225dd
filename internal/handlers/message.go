package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/apperr"
	"messaging-service/internal/attachments"
	"messaging-service/internal/models"
	"messaging-service/internal/notify"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/typing"
	"messaging-service/internal/ws"
)

// MessageHandler manages the message stream: send, edit, delete, react
// and delivery-state endpoints.
type MessageHandler struct {
	convRepo repositories.ConversationRepository
	msgRepo  repositories.MessageRepository
	pipeline *attachments.Pipeline
	fanout   *notify.Fanout
	typing   *typing.Coordinator
	hub      *ws.Hub
	log      *zap.SugaredLogger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(convRepo repositories.ConversationRepository, msgRepo repositories.MessageRepository, pipeline *attachments.Pipeline, fanout *notify.Fanout, typingCoord *typing.Coordinator, hub *ws.Hub, log *zap.SugaredLogger) *MessageHandler {
	return &MessageHandler{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		pipeline: pipeline,
		fanout:   fanout,
		typing:   typingCoord,
		hub:      hub,
		log:      log,
	}
}

// List returns the conversation's messages in display order.
func (h *MessageHandler) List(c *gin.Context) {
	ident := callerIdentity(c)
	conversationID := c.Param("conversation_id")

	member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, ident.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		respondError(c, apperr.Permission("not a participant"))
		return
	}

	msgs, err := h.msgRepo.ListForConversation(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Send stores a text message and triggers fan-out.
func (h *MessageHandler) Send(c *gin.Context) {
	ident := callerIdentity(c)
	conversationID := c.Param("conversation_id")

	conv, err := h.convRepo.Get(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !conv.HasParticipant(ident.UserID) {
		respondError(c, apperr.Permission("not a participant"))
		return
	}

	var req struct {
		Content   string `json:"content"`
		ClientKey string `json:"client_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Content == "" {
		respondError(c, apperr.Validation("content is required"))
		return
	}

	msg, err := h.msgRepo.Create(c.Request.Context(), models.Message{
		ConversationID: conversationID,
		SenderID:       ident.UserID,
		SenderName:     ident.DisplayName,
		SenderRole:     ident.Role,
		Kind:           models.MessageText,
		Content:        req.Content,
		ClientKey:      req.ClientKey,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.afterSend(c, conv, msg)
	c.JSON(http.StatusCreated, msg)
}

// SendFile uploads the attachment first, then stores a file message
// referencing it. An upload failure never creates a dangling message.
func (h *MessageHandler) SendFile(c *gin.Context) {
	ident := callerIdentity(c)
	conversationID := c.Param("conversation_id")

	conv, err := h.convRepo.Get(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !conv.HasParticipant(ident.UserID) {
		respondError(c, apperr.Permission("not a participant"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, apperr.Validation("file is required"))
		return
	}
	caption := c.PostForm("caption")
	clientKey := c.PostForm("client_key")

	file := attachments.File{
		Name:        fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		SizeBytes:   fileHeader.Size,
	}
	if err := h.pipeline.Validate(file, conv.Settings); err != nil {
		respondError(c, err)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot open file"})
		return
	}
	defer f.Close()
	file.Content = f

	var lastReported int64
	att, err := h.pipeline.Upload(c.Request.Context(), conversationID, file, func(transferred, total int64) {
		lastReported = transferred
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if h.log != nil && lastReported != file.SizeBytes {
		h.log.Debugw("upload progress ended short of total",
			"conversation_id", conversationID, "reported", lastReported, "total", file.SizeBytes)
	}

	msg, err := h.msgRepo.Create(c.Request.Context(), models.Message{
		ConversationID: conversationID,
		SenderID:       ident.UserID,
		SenderName:     ident.DisplayName,
		SenderRole:     ident.Role,
		Kind:           models.MessageFile,
		Content:        caption,
		ClientKey:      clientKey,
		Attachments:    []models.Attachment{att},
	})
	if err != nil {
		// The uploaded blob stays behind as unreferenced garbage for
		// periodic cleanup; it is never attached to another message.
		if h.log != nil {
			h.log.Warnw("file message create failed after upload",
				"conversation_id", conversationID, "attachment_url", att.URL, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.afterSend(c, conv, msg)
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) afterSend(c *gin.Context, conv models.Conversation, msg models.Message) {
	ctx := observability.ContextWithRequestID(c.Request.Context(), observability.RequestIDFromRequest(c.Request))

	observability.IncMessageSent(string(msg.Kind))
	h.hub.BroadcastMessageAdded(msg)
	h.fanout.MessageSent(ctx, conv, msg)

	summary := notify.Summarize(msg.SenderName, msg.Content)
	if err := h.convRepo.SetLastMessageSummary(ctx, conv.ID, summary); err != nil && h.log != nil {
		h.log.Warnw("summary update failed", "conversation_id", conv.ID, "error", err)
	}

	if h.typing != nil {
		h.typing.StopOnSend(ctx, conv.ID, msg.SenderID, msg.SenderName)
	}
}

// Edit rewrites a message's content; sender only.
func (h *MessageHandler) Edit(c *gin.Context) {
	ident := callerIdentity(c)
	conversationID := c.Param("conversation_id")
	messageID := c.Param("message_id")

	msg, err := h.msgRepo.Get(c.Request.Context(), conversationID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	if msg.SenderID != ident.UserID {
		respondError(c, apperr.Permission("only the sender can edit a message"))
		return
	}
	if msg.Deleted() {
		respondError(c, apperr.Validation("message is deleted"))
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.msgRepo.Edit(c.Request.Context(), messageID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	updated.Reactions = msg.Reactions
	updated.Attachments = msg.Attachments

	h.hub.BroadcastMessageChanged(updated)
	c.JSON(http.StatusOK, updated)
}

// Delete tombstones a message; sender only. The row keeps its id,
// position and reactions.
func (h *MessageHandler) Delete(c *gin.Context) {
	ident := callerIdentity(c)
	conversationID := c.Param("conversation_id")
	messageID := c.Param("message_id")

	msg, err := h.msgRepo.Get(c.Request.Context(), conversationID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	if msg.SenderID != ident.UserID {
		respondError(c, apperr.Permission("only the sender can delete a message"))
		return
	}

	deleted, err := h.msgRepo.Tombstone(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	deleted.Reactions = msg.Reactions
	deleted.Attachments = msg.Attachments

	h.hub.BroadcastMessageChanged(deleted)
	c.Status(http.StatusNoContent)
}

// React upserts the caller's single emoji on a message. Any participant
// may react to any message; repeating the same emoji changes nothing.
func (h *MessageHandler) React(c *gin.Context) {
	ident := callerIdentity(c)
	conversationID := c.Param("conversation_id")
	messageID := c.Param("message_id")

	conv, err := h.convRepo.Get(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !conv.HasParticipant(ident.UserID) {
		respondError(c, apperr.Permission("not a participant"))
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.msgRepo.Get(c.Request.Context(), conversationID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}

	changed, err := h.msgRepo.UpsertReaction(c.Request.Context(), msg.ID, ident.UserID, req.Emoji)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store reaction"})
		return
	}
	if !changed {
		c.JSON(http.StatusOK, msg)
		return
	}

	if msg.Reactions == nil {
		msg.Reactions = make(map[string]string)
	}
	msg.Reactions[ident.UserID] = req.Emoji

	h.hub.BroadcastMessageChanged(msg)
	reactCtx := observability.ContextWithRequestID(c.Request.Context(), observability.RequestIDFromRequest(c.Request))
	h.fanout.ReactionChanged(reactCtx, conv, msg, ident.UserID, ident.DisplayName, req.Emoji)
	c.JSON(http.StatusOK, msg)
}

// Unreact removes the caller's reaction.
func (h *MessageHandler) Unreact(c *gin.Context) {
	ident := callerIdentity(c)
	conversationID := c.Param("conversation_id")
	messageID := c.Param("message_id")

	msg, err := h.msgRepo.Get(c.Request.Context(), conversationID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, ok := msg.Reactions[ident.UserID]; !ok {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.msgRepo.RemoveReaction(c.Request.Context(), msg.ID, ident.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove reaction"})
		return
	}
	delete(msg.Reactions, ident.UserID)

	h.hub.BroadcastMessageChanged(msg)
	c.Status(http.StatusNoContent)
}

// MarkDelivered advances a message's status to delivered.
func (h *MessageHandler) MarkDelivered(c *gin.Context) {
	h.advanceStatus(c, models.StatusDelivered)
}

// MarkRead advances a message's status to read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	h.advanceStatus(c, models.StatusRead)
}

// advanceStatus applies the forward-only delivery state machine. A write
// that would move the status backward is dropped and counted, never
// applied and never surfaced to the caller.
func (h *MessageHandler) advanceStatus(c *gin.Context, target models.MessageStatus) {
	ident := callerIdentity(c)
	conversationID := c.Param("conversation_id")
	messageID := c.Param("message_id")

	member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, ident.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		respondError(c, apperr.Permission("not a participant"))
		return
	}

	msg, err := h.msgRepo.Get(c.Request.Context(), conversationID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}

	if msg.Status.Rank() >= target.Rank() {
		if msg.Status.Rank() > target.Rank() {
			drop := apperr.Invariant("status %s -> %s on message %s", msg.Status, target, messageID)
			observability.IncInvariantDrop("status_regression")
			if h.log != nil {
				h.log.Warnw("dropped backward status transition", "error", drop,
					"message_id", messageID, "current", msg.Status, "requested", target)
			}
		}
		c.JSON(http.StatusOK, msg)
		return
	}

	applied, err := h.msgRepo.AdvanceStatus(c.Request.Context(), messageID, target)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}
	if applied {
		msg.Status = target
		h.hub.BroadcastMessageChanged(msg)
	}
	c.JSON(http.StatusOK, msg)
}
