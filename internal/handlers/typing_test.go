package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/middleware"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/typing"
	"messaging-service/internal/ws"
)

func setupTypingRouter(handler *TypingHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxUserID, "u1")
		c.Set(middleware.CtxUserName, "Alice")
		c.Next()
	})
	r.PUT("/conversations/:conversation_id/typing", handler.Set)
	r.GET("/presence/:user_id", handler.Presence)
	return r
}

func TestSetTypingBroadcasts(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	hub := ws.NewHub()
	coord := typing.NewCoordinator(hub, typing.NoopStore{}, time.Hour, nil)
	router := setupTypingRouter(NewTypingHandler(convRepo, coord))

	var got []models.TypingSignal
	sub := hub.ListenTyping("c1", func(signal models.TypingSignal) { got = append(got, signal) })
	defer sub.Close()

	convRepo.On("IsParticipant", mock.Anything, "c1", "u1").Return(true, nil).Once()

	body := bytes.NewBufferString(`{"is_typing":true}`)
	req := httptest.NewRequest(http.MethodPut, "/conversations/c1/typing", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsTyping)
	assert.Equal(t, "Alice", got[0].UserName)
	convRepo.AssertExpectations(t)
}

func TestSetTypingForbiddenForNonParticipant(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	coord := typing.NewCoordinator(ws.NewHub(), typing.NoopStore{}, time.Hour, nil)
	router := setupTypingRouter(NewTypingHandler(convRepo, coord))

	convRepo.On("IsParticipant", mock.Anything, "c1", "u1").Return(false, nil).Once()

	body := bytes.NewBufferString(`{"is_typing":true}`)
	req := httptest.NewRequest(http.MethodPut, "/conversations/c1/typing", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPresenceSnapshot(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	store := new(mocks.SignalStoreMock)
	coord := typing.NewCoordinator(ws.NewHub(), store, time.Hour, nil)
	router := setupTypingRouter(NewTypingHandler(convRepo, coord))

	store.On("IsOnline", mock.Anything, "u2").Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/presence/u2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		UserID string `json:"user_id"`
		Online bool   `json:"online"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "u2", resp.UserID)
	assert.True(t, resp.Online)
	store.AssertExpectations(t)
}
