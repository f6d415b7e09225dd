package models

import "time"

// MessageKind distinguishes plain text, file and system messages.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageFile   MessageKind = "file"
	MessageSystem MessageKind = "system"
)

// MessageStatus tracks delivery state. Transitions only move forward.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

var statusRank = map[MessageStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Rank returns the position of the status in the delivery sequence,
// or -1 for an unknown status.
func (s MessageStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// StatusesBefore lists every status strictly earlier than s in the
// delivery sequence. Used to make status writes monotonic.
func StatusesBefore(s MessageStatus) []string {
	target := s.Rank()
	var earlier []string
	for status, rank := range statusRank {
		if rank < target {
			earlier = append(earlier, string(status))
		}
	}
	return earlier
}

// TombstoneContent replaces the content of a deleted message.
const TombstoneContent = "This message was deleted"

// Message is a single entry in a conversation.
type Message struct {
	ID             int64         `db:"id" json:"-"`
	PublicID       string        `db:"public_id" json:"id"`
	ConversationID string        `db:"conversation_id" json:"conversation_id"`
	SenderID       string        `db:"sender_id" json:"sender_id"`
	SenderName     string        `db:"sender_name" json:"sender_name"`
	SenderRole     string        `db:"sender_role" json:"sender_role"`
	Kind           MessageKind   `db:"kind" json:"kind"`
	Content        string        `db:"content" json:"content"`
	ClientKey      string        `db:"client_key" json:"client_key,omitempty"`
	Status         MessageStatus `db:"status" json:"status"`
	Attachments    []Attachment  `json:"attachments,omitempty"`
	// Reactions maps a user id to that user's single emoji.
	Reactions map[string]string `json:"reactions,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	EditedAt  *time.Time        `db:"edited_at" json:"edited_at,omitempty"`
	DeletedAt *time.Time        `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Deleted reports whether the message is a tombstone.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// StreamEvent is delivered over conversation stream connections.
type StreamEvent struct {
	Type     string        `json:"type"`
	Message  *Message      `json:"message,omitempty"`
	Messages []Message     `json:"messages,omitempty"`
	Typing   *TypingSignal `json:"typing,omitempty"`
}

const (
	EventSnapshot       = "snapshot"
	EventMessageAdded   = "message_added"
	EventMessageChanged = "message_changed"
	EventTyping         = "typing"
)
