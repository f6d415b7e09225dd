package models

import "time"

// NotificationKind classifies why a notification was produced.
type NotificationKind string

const (
	NotifyNewMessage NotificationKind = "new_message"
	NotifyMention    NotificationKind = "mention"
	NotifyReply      NotificationKind = "reply"
	NotifyReaction   NotificationKind = "reaction"
	NotifyFileShared NotificationKind = "file_shared"
)

// Notification is a per-recipient record produced by message fan-out.
// It is owned by its recipient; only the recipient marks it read.
type Notification struct {
	ID             string           `db:"id" json:"id"`
	RecipientID    string           `db:"recipient_id" json:"recipient_id"`
	ConversationID string           `db:"conversation_id" json:"conversation_id"`
	Kind           NotificationKind `db:"kind" json:"kind"`
	Title          string           `db:"title" json:"title"`
	Body           string           `db:"body" json:"body"`
	Read           bool             `db:"read" json:"read"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}
