package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperr"
	"messaging-service/internal/repositories"
	"messaging-service/internal/typing"
)

// TypingHandler exposes the REST side of the typing coordinator for
// clients not holding a stream connection, plus the presence snapshot.
type TypingHandler struct {
	convRepo repositories.ConversationRepository
	coord    *typing.Coordinator
}

// NewTypingHandler builds a TypingHandler.
func NewTypingHandler(convRepo repositories.ConversationRepository, coord *typing.Coordinator) *TypingHandler {
	return &TypingHandler{convRepo: convRepo, coord: coord}
}

// Set publishes or clears the caller's typing signal.
func (h *TypingHandler) Set(c *gin.Context) {
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

	var req struct {
		IsTyping bool `json:"is_typing"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.coord.Set(c.Request.Context(), conversationID, ident.UserID, ident.DisplayName, req.IsTyping); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish typing signal"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Presence reports best-effort online state for a user.
func (h *TypingHandler) Presence(c *gin.Context) {
	userID := c.Param("user_id")

	online, err := h.coord.IsOnline(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "online": online})
}
