package notify

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// Notifier delivers freshly created notifications to live listeners.
type Notifier interface {
	NotifyUser(n models.Notification)
}

// Fanout turns a stored message into one notification per recipient and
// keeps the recipients' unread counters in step. Recipients are all
// conversation participants except the sender.
type Fanout struct {
	repo repositories.NotificationRepository
	hub  Notifier
	log  *zap.SugaredLogger
}

// NewFanout constructs a Fanout.
func NewFanout(repo repositories.NotificationRepository, hub Notifier, log *zap.SugaredLogger) *Fanout {
	return &Fanout{repo: repo, hub: hub, log: log}
}

// MessageSent runs fan-out for a newly stored message. A failure for one
// recipient is logged and does not block the others; the message itself
// is already durable at this point.
func (f *Fanout) MessageSent(ctx context.Context, conv models.Conversation, msg models.Message) {
	title := conv.Name
	if title == "" {
		title = msg.SenderName
	}
	body := Summarize(msg.SenderName, msg.Content)

	for _, p := range conv.Participants {
		if p.UserID == msg.SenderID {
			continue
		}

		kind := models.NotifyNewMessage
		if msg.Kind == models.MessageFile {
			kind = models.NotifyFileShared
		} else if mentions(msg.Content, p.DisplayName) {
			kind = models.NotifyMention
		}

		f.create(ctx, models.Notification{
			RecipientID:    p.UserID,
			ConversationID: conv.ID,
			Kind:           kind,
			Title:          title,
			Body:           body,
		})
	}
}

// ReactionChanged notifies the message sender that someone reacted. The
// caller only invokes this when the reaction upsert actually changed
// state, so a repeated identical reaction never duplicates notifications.
func (f *Fanout) ReactionChanged(ctx context.Context, conv models.Conversation, msg models.Message, reactorID, reactorName, emoji string) {
	if reactorID == msg.SenderID {
		return
	}
	f.create(ctx, models.Notification{
		RecipientID:    msg.SenderID,
		ConversationID: conv.ID,
		Kind:           models.NotifyReaction,
		Title:          conv.Name,
		Body:           reactorName + " reacted " + emoji,
	})
}

func (f *Fanout) create(ctx context.Context, n models.Notification) {
	stored, err := f.repo.Create(ctx, n)
	if err != nil {
		if f.log != nil {
			f.log.Errorw("notification create failed",
				"recipient_id", n.RecipientID, "conversation_id", n.ConversationID, "error", err)
		}
		return
	}

	observability.IncFanoutNotification(string(stored.Kind))
	f.hub.NotifyUser(stored)
	_ = observability.PublishEvent(ctx, "notifications.created",
		observability.NewEnvelope("notification", string(stored.Kind), stored),
		observability.BuildHeaders(observability.RequestIDFromContext(ctx), observability.TraceIDFromContext(ctx)))
}

// Summarize builds the short preview used for notification bodies and
// conversation list rows.
func Summarize(senderName, content string) string {
	const max = 80
	s := senderName + ": " + content
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}

func mentions(content, displayName string) bool {
	if displayName == "" {
		return false
	}
	return strings.Contains(content, "@"+displayName)
}
