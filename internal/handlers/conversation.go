package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperr"
	"messaging-service/internal/directory"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

// ConversationHandler manages the conversation directory and lifecycle.
type ConversationHandler struct {
	convRepo repositories.ConversationRepository
	msgRepo  repositories.MessageRepository
	userDir  directory.UserDirectory
	hub      *ws.Hub
	audit    *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(convRepo repositories.ConversationRepository, msgRepo repositories.MessageRepository, userDir directory.UserDirectory, hub *ws.Hub, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userDir:  userDir,
		hub:      hub,
		audit:    audit,
	}
}

// List returns the caller's conversations partitioned by kind.
func (h *ConversationHandler) List(c *gin.Context) {
	ident := callerIdentity(c)

	convs, err := h.convRepo.ListForUser(c.Request.Context(), ident.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	partitioned := map[models.ConversationKind][]models.Conversation{
		models.KindDirect:  {},
		models.KindGroup:   {},
		models.KindChannel: {},
	}
	for _, conv := range convs {
		partitioned[conv.Kind] = append(partitioned[conv.Kind], conv)
	}

	c.JSON(http.StatusOK, gin.H{
		"direct":  partitioned[models.KindDirect],
		"group":   partitioned[models.KindGroup],
		"channel": partitioned[models.KindChannel],
	})
}

// Create handles POST /conversations for group and channel kinds.
func (h *ConversationHandler) Create(c *gin.Context) {
	ident := callerIdentity(c)

	var req struct {
		Name      string                       `json:"name"`
		Kind      models.ConversationKind      `json:"kind"`
		MemberIDs []string                     `json:"member_ids"`
		Settings  *models.ConversationSettings `json:"settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Kind == "" {
		req.Kind = models.KindGroup
	}
	if !req.Kind.Valid() || req.Kind == models.KindDirect {
		respondError(c, apperr.Validation("kind must be group or channel"))
		return
	}
	if req.Name == "" {
		respondError(c, apperr.Validation("name is required"))
		return
	}

	settings := models.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	members, err := h.userDir.Users(c.Request.Context(), req.MemberIDs)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to validate members"})
		return
	}

	participants := []models.Participant{{
		UserID:      ident.UserID,
		DisplayName: ident.DisplayName,
		Role:        "owner",
	}}
	for _, m := range members {
		if m.UserID == ident.UserID {
			continue
		}
		participants = append(participants, models.Participant{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Role:        "member",
		})
	}

	conv, err := h.convRepo.Create(c.Request.Context(), models.Conversation{
		Kind:         req.Kind,
		Name:         req.Name,
		CreatedBy:    ident.UserID,
		Participants: participants,
		Settings:     settings,
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "conversation create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	// Announce the room. A failure here leaves a usable conversation
	// without its system message, which is tolerable.
	if h.msgRepo != nil {
		sys, err := h.msgRepo.Create(c.Request.Context(), models.Message{
			ConversationID: conv.ID,
			SenderID:       ident.UserID,
			SenderName:     ident.DisplayName,
			SenderRole:     ident.Role,
			Kind:           models.MessageSystem,
			Content:        ident.DisplayName + " created " + conv.Name,
		})
		if err == nil && h.hub != nil {
			h.hub.BroadcastMessageAdded(sys)
		}
	}

	h.emitAudit(c, "INFO", "conversation created")
	c.JSON(http.StatusCreated, conv)
}

// StartDirect handles POST /conversations/direct. Calling it repeatedly,
// from either side, always lands on the same conversation.
func (h *ConversationHandler) StartDirect(c *gin.Context) {
	ident := callerIdentity(c)

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID == ident.UserID {
		respondError(c, apperr.Validation("cannot start a conversation with yourself"))
		return
	}

	other, err := h.userDir.User(c.Request.Context(), req.UserID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to resolve user"})
		return
	}

	conv, err := h.convRepo.GetOrCreateDirect(c.Request.Context(),
		models.Participant{UserID: ident.UserID, DisplayName: ident.DisplayName, Role: "member"},
		models.Participant{UserID: other.UserID, DisplayName: other.DisplayName, Role: "member"},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start conversation"})
		return
	}

	c.JSON(http.StatusOK, conv)
}

// Get returns one conversation; participants only.
func (h *ConversationHandler) Get(c *gin.Context) {
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

	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	userID := c.GetString(middlewareUserIDKey)
	var userPtr *string
	if userID != "" {
		userPtr = &userID
	}
	h.audit.Emit(c.Request.Context(), level, text, observability.RequestIDFromRequest(c.Request), userPtr)
}
