package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/repositories"
)

// NotificationHandler serves per-user notification state.
type NotificationHandler struct {
	repo repositories.NotificationRepository
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(repo repositories.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{repo: repo}
}

// List returns the caller's notifications; ?unread=true filters to
// unread only.
func (h *NotificationHandler) List(c *gin.Context) {
	ident := callerIdentity(c)
	onlyUnread := c.Query("unread") == "true"

	list, err := h.repo.ListForUser(c.Request.Context(), ident.UserID, onlyUnread)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkRead flags one of the caller's notifications as read and decrements
// the unread counter.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	ident := callerIdentity(c)
	notificationID := c.Param("notification_id")

	if err := h.repo.MarkRead(c.Request.Context(), ident.UserID, notificationID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UnreadCount returns the caller's current unread counter.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	ident := callerIdentity(c)

	count, err := h.repo.UnreadCount(c.Request.Context(), ident.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread count"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}
