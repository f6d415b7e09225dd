package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperr"
	"messaging-service/internal/directory"
	"messaging-service/internal/middleware"
	"messaging-service/internal/repositories"
)

const middlewareUserIDKey = middleware.CtxUserID

// callerIdentity reads the identity the auth middleware stored on the
// request context.
func callerIdentity(c *gin.Context) directory.Identity {
	return directory.Identity{
		UserID:      c.GetString(middleware.CtxUserID),
		DisplayName: c.GetString(middleware.CtxUserName),
		Role:        c.GetString(middleware.CtxUserRole),
	}
}

// respondError maps the error taxonomy onto HTTP statuses. Validation and
// permission failures are surfaced as-is; upload failures are marked
// retryable; anything else stays a generic 500.
func respondError(c *gin.Context, err error) {
	var (
		validation *apperr.ValidationError
		permission *apperr.PermissionError
		upload     *apperr.UploadError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Reason})
	case errors.As(err, &permission):
		c.JSON(http.StatusForbidden, gin.H{"error": permission.Reason})
	case errors.As(err, &upload):
		c.JSON(http.StatusBadGateway, gin.H{"error": upload.Error(), "retryable": true})
	case errors.Is(err, repositories.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, repositories.ErrNotificationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
