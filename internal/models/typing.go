package models

import "time"

// TypingSignal is the ephemeral "user is typing" state for a conversation.
// Signals expire on their own after a short inactivity window and never
// survive the client session.
type TypingSignal struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
	IsTyping       bool      `json:"is_typing"`
	UpdatedAt      time.Time `json:"updated_at"`
}
