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
	"messaging-service/internal/notify"
	"messaging-service/internal/ws"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxUserID, "u1")
		c.Set(middleware.CtxUserName, "Alice")
		c.Set(middleware.CtxUserRole, "employee")
		c.Next()
	})
	r.GET("/conversations/:conversation_id/messages", handler.List)
	r.POST("/conversations/:conversation_id/messages", handler.Send)
	r.PATCH("/conversations/:conversation_id/messages/:message_id", handler.Edit)
	r.DELETE("/conversations/:conversation_id/messages/:message_id", handler.Delete)
	r.PUT("/conversations/:conversation_id/messages/:message_id/reactions", handler.React)
	r.DELETE("/conversations/:conversation_id/messages/:message_id/reactions", handler.Unreact)
	r.POST("/conversations/:conversation_id/messages/:message_id/delivered", handler.MarkDelivered)
	r.POST("/conversations/:conversation_id/messages/:message_id/read", handler.MarkRead)
	return r
}

func messageDeps(t *testing.T) (*mocks.ConversationRepositoryMock, *mocks.MessageRepositoryMock, *mocks.NotificationRepositoryMock, *MessageHandler) {
	t.Helper()
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	notifRepo := new(mocks.NotificationRepositoryMock)
	hub := ws.NewHub()
	fanout := notify.NewFanout(notifRepo, hub, nil)
	handler := NewMessageHandler(convRepo, msgRepo, nil, fanout, nil, hub, nil)
	return convRepo, msgRepo, notifRepo, handler
}

func memberConversation() models.Conversation {
	return models.Conversation{
		ID:   "c1",
		Kind: models.KindGroup,
		Name: "design",
		Participants: []models.Participant{
			{UserID: "u1", DisplayName: "Alice"},
			{UserID: "u2", DisplayName: "Bob"},
		},
		Settings: models.DefaultSettings(),
	}
}

func TestSendMessageCreatesAndFansOut(t *testing.T) {
	convRepo, msgRepo, notifRepo, handler := messageDeps(t)
	router := setupMessageRouter(handler)

	convRepo.On("Get", mock.Anything, "c1").Return(memberConversation(), nil).Once()
	msgRepo.On("Create", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.ConversationID == "c1" &&
			msg.SenderID == "u1" &&
			msg.Kind == models.MessageText &&
			msg.Content == "hello" &&
			msg.ClientKey == "ck-1"
	})).Return(models.Message{PublicID: "m1", ConversationID: "c1", SenderID: "u1", SenderName: "Alice", Content: "hello", Status: models.StatusSent}, nil).Once()
	notifRepo.On("Create", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.RecipientID == "u2" && n.Kind == models.NotifyNewMessage
	})).Return(models.Notification{ID: "n1"}, nil).Once()
	convRepo.On("SetLastMessageSummary", mock.Anything, "c1", "Alice: hello").Return(nil).Once()

	body := bytes.NewBufferString(`{"content":"hello","client_key":"ck-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "m1", resp.PublicID)
	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
	notifRepo.AssertExpectations(t)
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	convRepo, _, _, handler := messageDeps(t)
	router := setupMessageRouter(handler)

	convRepo.On("Get", mock.Anything, "c1").Return(memberConversation(), nil).Once()

	body := bytes.NewBufferString(`{"content":""}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageForbiddenForNonParticipant(t *testing.T) {
	convRepo, _, _, handler := messageDeps(t)
	router := setupMessageRouter(handler)

	conv := memberConversation()
	conv.Participants = []models.Participant{{UserID: "u2"}}
	convRepo.On("Get", mock.Anything, "c1").Return(conv, nil).Once()

	body := bytes.NewBufferString(`{"content":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEditMessageSenderOnly(t *testing.T) {
	_, msgRepo, _, handler := messageDeps(t)
	router := setupMessageRouter(handler)

	msgRepo.On("Get", mock.Anything, "c1", "m1").Return(models.Message{
		PublicID: "m1", ConversationID: "c1", SenderID: "u2",
	}, nil).Once()

	body := bytes.NewBufferString(`{"content":"edited"}`)
	req := httptest.NewRequest(http.MethodPatch, "/conversations/c1/messages/m1", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	msgRepo.AssertExpectations(t)
}

func TestEditMessageRejectsTombstone(t *testing.T) {
	_, msgRepo, _, handler := messageDeps(t)
	router := setupMessageRouter(handler)

	now := time.Now()
	msgRepo.On("Get", mock.Anything, "c1", "m1").Return(models.Message{
		PublicID: "m1", ConversationID: "c1", SenderID: "u1",
		Content: models.TombstoneContent, DeletedAt: &now,
	}, nil).Once()

	body := bytes.NewBufferString(`{"content":"edited"}`)
	req := httptest.NewRequest(http.MethodPatch, "/conversations/c1/messages/m1", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteMessagePreservesReactions(t *testing.T) {
	_, msgRepo, _, handler := messageDeps(t)
	router := setupMessageRouter(handler)

	now := time.Now()
	reactions := map[string]string{"u2": "👍"}
	msgRepo.On("Get", mock.Anything, "c1", "m1").Return(models.Message{
		PublicID: "m1", ConversationID: "c1", SenderID: "u1", Reactions: reactions,
	}, nil).Once()
	msgRepo.On("Tombstone", mock.Anything, "m1").Return(models.Message{
		PublicID: "m1", ConversationID: "c1", SenderID: "u1",
		Content: models.TombstoneContent, DeletedAt: &now,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/c1/messages/m1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	msgRepo.AssertExpectations(t)
}

func TestReactSameEmojiIsNoOp(t *testing.T) {
	convRepo, msgRepo, notifRepo, handler := messageDeps(t)
	router := setupMessageRouter(handler)

	convRepo.On("Get", mock.Anything, "c1").Return(memberConversation(), nil).Once()
	msgRepo.On("Get", mock.Anything, "c1", "m1").Return(models.Message{
		ID: 7, PublicID: "m1", ConversationID: "c1", SenderID: "u2",
		Reactions: map[string]string{"u1": "👍"},
	}, nil).Once()
	msgRepo.On("UpsertReaction", mock.Anything, int64(7), "u1", "👍").Return(false, nil).Once()

	body := bytes.NewBufferString(`{"emoji":"👍"}`)
	req := httptest.NewRequest(http.MethodPut, "/conversations/c1/messages/m1/reactions", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	msgRepo.AssertExpectations(t)
	notifRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReactReplacesEmojiAndNotifiesSender(t *testing.T) {
	convRepo, msgRepo, notifRepo, handler := messageDeps(t)
	router := setupMessageRouter(handler)

	convRepo.On("Get", mock.Anything, "c1").Return(memberConversation(), nil).Once()
	msgRepo.On("Get", mock.Anything, "c1", "m1").Return(models.Message{
		ID: 7, PublicID: "m1", ConversationID: "c1", SenderID: "u2",
		Reactions: map[string]string{"u1": "👍"},
	}, nil).Once()
	msgRepo.On("UpsertReaction", mock.Anything, int64(7), "u1", "🎉").Return(true, nil).Once()
	notifRepo.On("Create", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.RecipientID == "u2" && n.Kind == models.NotifyReaction
	})).Return(models.Notification{ID: "n1"}, nil).Once()

	body := bytes.NewBufferString(`{"emoji":"🎉"}`)
	req := httptest.NewRequest(http.MethodPut, "/conversations/c1/messages/m1/reactions", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "🎉", resp.Reactions["u1"])
	msgRepo.AssertExpectations(t)
	notifRepo.AssertExpectations(t)
}

func TestUnreactWithoutReactionIsNoOp(t *testing.T) {
	_, msgRepo, _, handler := messageDeps(t)
	router := setupMessageRouter(handler)

	msgRepo.On("Get", mock.Anything, "c1", "m1").Return(models.Message{
		ID: 7, PublicID: "m1", ConversationID: "c1", SenderID: "u2",
	}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/c1/messages/m1/reactions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	msgRepo.AssertNotCalled(t, "RemoveReaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkDeliveredAdvancesStatus(t *testing.T) {
	convRepo, msgRepo, _, handler := messageDeps(t)
	router := setupMessageRouter(handler)

	convRepo.On("IsParticipant", mock.Anything, "c1", "u1").Return(true, nil).Once()
	msgRepo.On("Get", mock.Anything, "c1", "m1").Return(models.Message{
		PublicID: "m1", ConversationID: "c1", Status: models.StatusSent,
	}, nil).Once()
	msgRepo.On("AdvanceStatus", mock.Anything, "m1", models.StatusDelivered).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages/m1/delivered", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.StatusDelivered, resp.Status)
	msgRepo.AssertExpectations(t)
}

func TestMarkDeliveredDropsBackwardTransition(t *testing.T) {
	convRepo, msgRepo, _, handler := messageDeps(t)
	router := setupMessageRouter(handler)

	convRepo.On("IsParticipant", mock.Anything, "c1", "u1").Return(true, nil).Once()
	msgRepo.On("Get", mock.Anything, "c1", "m1").Return(models.Message{
		PublicID: "m1", ConversationID: "c1", Status: models.StatusRead,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages/m1/delivered", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.StatusRead, resp.Status)
	msgRepo.AssertNotCalled(t, "AdvanceStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadIdempotent(t *testing.T) {
	convRepo, msgRepo, _, handler := messageDeps(t)
	router := setupMessageRouter(handler)

	convRepo.On("IsParticipant", mock.Anything, "c1", "u1").Return(true, nil).Once()
	msgRepo.On("Get", mock.Anything, "c1", "m1").Return(models.Message{
		PublicID: "m1", ConversationID: "c1", Status: models.StatusRead,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages/m1/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	msgRepo.AssertNotCalled(t, "AdvanceStatus", mock.Anything, mock.Anything, mock.Anything)
}
