package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/attachments"
	"messaging-service/internal/directory"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/typing"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) Create(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	args := m.Called(ctx, conv)
	var out models.Conversation
	if val := args.Get(0); val != nil {
		out = val.(models.Conversation)
	}
	return out, args.Error(1)
}

func (m *ConversationRepositoryMock) GetOrCreateDirect(ctx context.Context, a, b models.Participant) (models.Conversation, error) {
	args := m.Called(ctx, a, b)
	var out models.Conversation
	if val := args.Get(0); val != nil {
		out = val.(models.Conversation)
	}
	return out, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID string) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var out models.Conversation
	if val := args.Get(0); val != nil {
		out = val.(models.Conversation)
	}
	return out, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var out []models.Conversation
	if val := args.Get(0); val != nil {
		out = val.([]models.Conversation)
	}
	return out, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) SetLastMessageSummary(ctx context.Context, conversationID, summary string) error {
	args := m.Called(ctx, conversationID, summary)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListForConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var out []models.Message
	if val := args.Get(0); val != nil {
		out = val.([]models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, conversationID, publicID string) (models.Message, error) {
	args := m.Called(ctx, conversationID, publicID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) Edit(ctx context.Context, publicID, content string) (models.Message, error) {
	args := m.Called(ctx, publicID, content)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) Tombstone(ctx context.Context, publicID string) (models.Message, error) {
	args := m.Called(ctx, publicID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) UpsertReaction(ctx context.Context, messageID int64, userID, emoji string) (bool, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) RemoveReaction(ctx context.Context, messageID int64, userID string) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) AdvanceStatus(ctx context.Context, publicID string, target models.MessageStatus) (bool, error) {
	args := m.Called(ctx, publicID, target)
	return args.Bool(0), args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var out models.Notification
	if val := args.Get(0); val != nil {
		out = val.(models.Notification)
	}
	return out, args.Error(1)
}

func (m *NotificationRepositoryMock) ListForUser(ctx context.Context, userID string, onlyUnread bool) ([]models.Notification, error) {
	args := m.Called(ctx, userID, onlyUnread)
	var out []models.Notification
	if val := args.Get(0); val != nil {
		out = val.([]models.Notification)
	}
	return out, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, userID, notificationID string) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) UnreadCount(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type TokenVerifierMock struct {
	mock.Mock
}

func (m *TokenVerifierMock) Verify(ctx context.Context, token string) (directory.Identity, error) {
	args := m.Called(ctx, token)
	var out directory.Identity
	if val := args.Get(0); val != nil {
		out = val.(directory.Identity)
	}
	return out, args.Error(1)
}

type UserDirectoryMock struct {
	mock.Mock
}

func (m *UserDirectoryMock) User(ctx context.Context, userID string) (directory.Identity, error) {
	args := m.Called(ctx, userID)
	var out directory.Identity
	if val := args.Get(0); val != nil {
		out = val.(directory.Identity)
	}
	return out, args.Error(1)
}

func (m *UserDirectoryMock) Users(ctx context.Context, userIDs []string) ([]directory.Identity, error) {
	args := m.Called(ctx, userIDs)
	var out []directory.Identity
	if val := args.Get(0); val != nil {
		out = val.([]directory.Identity)
	}
	return out, args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) NotifyUser(n models.Notification) {
	m.Called(n)
}

type BlobStoreMock struct {
	mock.Mock
}

func (m *BlobStoreMock) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, onProgress attachments.ProgressFunc) (string, error) {
	args := m.Called(ctx, key, contentType, r, size, onProgress)
	if onProgress != nil {
		onProgress(size, size)
	}
	return args.String(0), args.Error(1)
}

func (m *BlobStoreMock) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type SignalStoreMock struct {
	mock.Mock
}

func (m *SignalStoreMock) Put(ctx context.Context, signal models.TypingSignal, ttl time.Duration) error {
	args := m.Called(ctx, signal, ttl)
	return args.Error(0)
}

func (m *SignalStoreMock) Clear(ctx context.Context, conversationID, userID string) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *SignalStoreMock) Publish(ctx context.Context, signal models.TypingSignal) error {
	args := m.Called(ctx, signal)
	return args.Error(0)
}

func (m *SignalStoreMock) SetPresence(ctx context.Context, userID string, online bool, ttl time.Duration) error {
	args := m.Called(ctx, userID, online, ttl)
	return args.Error(0)
}

func (m *SignalStoreMock) IsOnline(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

var (
	_ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
	_ repositories.MessageRepository      = (*MessageRepositoryMock)(nil)
	_ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
	_ directory.TokenVerifier             = (*TokenVerifierMock)(nil)
	_ directory.UserDirectory             = (*UserDirectoryMock)(nil)
	_ attachments.BlobStore               = (*BlobStoreMock)(nil)
	_ typing.SignalStore                  = (*SignalStoreMock)(nil)
)
