package models

import (
	"fmt"
	"time"
)

// ConversationKind distinguishes direct, group and channel conversations.
type ConversationKind string

const (
	KindDirect  ConversationKind = "direct"
	KindGroup   ConversationKind = "group"
	KindChannel ConversationKind = "channel"
)

// Valid reports whether the kind is one of the known values.
func (k ConversationKind) Valid() bool {
	switch k {
	case KindDirect, KindGroup, KindChannel:
		return true
	}
	return false
}

// Participant is a member of a conversation.
type Participant struct {
	UserID      string    `db:"user_id" json:"user_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Role        string    `db:"role" json:"role"`
	JoinedAt    time.Time `db:"joined_at" json:"joined_at"`
}

// ConversationSettings is the fixed settings record for a conversation.
type ConversationSettings struct {
	AllowFileSharing bool     `json:"allow_file_sharing"`
	MaxFileSizeMB    int      `json:"max_file_size_mb"`
	AllowedMimeKinds []string `json:"allowed_mime_kinds"`
	IsPrivate        bool     `json:"is_private"`
	RequiresApproval bool     `json:"requires_approval"`
}

// DefaultSettings returns the settings applied when a creator supplies none.
func DefaultSettings() ConversationSettings {
	return ConversationSettings{
		AllowFileSharing: true,
		MaxFileSizeMB:    25,
		AllowedMimeKinds: []string{string(MimeImage), string(MimeDocument), string(MimeOther)},
	}
}

// Conversation is a thread of messages among a fixed participant set.
type Conversation struct {
	ID                 string               `db:"id" json:"id"`
	Kind               ConversationKind     `db:"kind" json:"kind"`
	Name               string               `db:"name" json:"name"`
	DirectKey          string               `db:"direct_key" json:"-"`
	Participants       []Participant        `json:"participants"`
	Settings           ConversationSettings `json:"settings"`
	CreatedBy          string               `db:"created_by" json:"created_by"`
	CreatedAt          time.Time            `db:"created_at" json:"created_at"`
	LastMessageSummary string               `db:"last_message_summary" json:"last_message_summary,omitempty"`
}

// HasParticipant reports whether the user belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// DirectKey derives the canonical lookup key for a direct conversation.
// The key is order-independent so both users address the same row.
func DirectKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%s:%s", userA, userB)
}
