package models

import "strings"

// MimeKind buckets attachment content types for validation and display.
type MimeKind string

const (
	MimeImage    MimeKind = "image"
	MimeDocument MimeKind = "document"
	MimeOther    MimeKind = "other"
)

// Attachment is a binary payload linked to a single message.
type Attachment struct {
	ID        string   `db:"id" json:"id"`
	MessageID int64    `db:"message_id" json:"-"`
	Name      string   `db:"name" json:"name"`
	MimeKind  MimeKind `db:"mime_kind" json:"mime_kind"`
	URL       string   `db:"url" json:"url"`
	SizeBytes int64    `db:"size_bytes" json:"size_bytes"`
}

var documentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/plain": true,
	"text/csv":   true,
}

// MimeKindOf maps a content type onto its kind bucket.
func MimeKindOf(contentType string) MimeKind {
	if strings.HasPrefix(contentType, "image/") {
		return MimeImage
	}
	if documentTypes[contentType] {
		return MimeDocument
	}
	return MimeOther
}
