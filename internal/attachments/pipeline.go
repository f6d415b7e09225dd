package attachments

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"messaging-service/internal/apperr"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// File describes an attachment candidate before upload.
type File struct {
	Name        string
	ContentType string
	SizeBytes   int64
	Content     io.Reader
}

// Pipeline validates and uploads attachments. Upload failures surface as
// UploadError and never produce a message; a blob uploaded for a message
// that was never created is left as unreferenced garbage.
type Pipeline struct {
	store         BlobStore
	globalLimitMB int
	log           *zap.SugaredLogger
}

// NewPipeline constructs a Pipeline. globalLimitMB applies when a
// conversation has no tighter limit of its own.
func NewPipeline(store BlobStore, globalLimitMB int, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{store: store, globalLimitMB: globalLimitMB, log: log}
}

// Validate rejects files over the conversation's size limit or outside
// its allowed mime kinds. A zero conversation limit falls back to the
// global one.
func (p *Pipeline) Validate(file File, settings models.ConversationSettings) error {
	if !settings.AllowFileSharing {
		return apperr.Validation("file sharing is disabled for this conversation")
	}

	limitMB := settings.MaxFileSizeMB
	if limitMB <= 0 {
		limitMB = p.globalLimitMB
	}
	if file.SizeBytes > int64(limitMB)*1024*1024 {
		return apperr.Validation("file exceeds the %dMB limit", limitMB)
	}

	kind := models.MimeKindOf(file.ContentType)
	allowed := settings.AllowedMimeKinds
	if len(allowed) == 0 {
		allowed = models.DefaultSettings().AllowedMimeKinds
	}
	for _, k := range allowed {
		if k == string(kind) {
			return nil
		}
	}
	return apperr.Validation("file type %q is not allowed here", file.ContentType)
}

// Upload transfers the file and returns the attachment record to link to
// a message. The returned attachment has no message id yet; the caller
// binds it when creating the message.
func (p *Pipeline) Upload(ctx context.Context, conversationID string, file File, onProgress ProgressFunc) (models.Attachment, error) {
	id := uuid.NewString()
	key := conversationID + "/" + id + "_" + sanitizeName(file.Name)

	url, err := p.store.Upload(ctx, key, file.ContentType, file.Content, file.SizeBytes, onProgress)
	if err != nil {
		if p.log != nil {
			p.log.Warnw("attachment upload failed",
				"conversation_id", conversationID, "name", file.Name, "error", err)
		}
		return models.Attachment{}, apperr.Upload(err)
	}
	observability.ObserveUploadBytes(file.SizeBytes)

	return models.Attachment{
		ID:        id,
		Name:      file.Name,
		MimeKind:  models.MimeKindOf(file.ContentType),
		URL:       url,
		SizeBytes: file.SizeBytes,
	}, nil
}

func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	return strings.ReplaceAll(name, "\\", "_")
}
