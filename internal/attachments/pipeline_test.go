package attachments

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/apperr"
	"messaging-service/internal/models"
)

type fakeStore struct {
	uploadedKey string
	failWith    error
}

func (f *fakeStore) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, onProgress ProgressFunc) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.uploadedKey = key
	if onProgress != nil {
		onProgress(size/2, size)
		onProgress(size, size)
	}
	return "https://blobs.example.com/" + key, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error { return nil }

func TestValidateRejectsOversizedFile(t *testing.T) {
	p := NewPipeline(&fakeStore{}, 25, nil)
	settings := models.DefaultSettings()
	settings.MaxFileSizeMB = 10

	err := p.Validate(File{Name: "big.bin", ContentType: "application/octet-stream", SizeBytes: 40 << 20}, settings)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "10MB")
}

func TestValidateFallsBackToGlobalLimit(t *testing.T) {
	p := NewPipeline(&fakeStore{}, 25, nil)
	settings := models.DefaultSettings()
	settings.MaxFileSizeMB = 0

	require.NoError(t, p.Validate(File{Name: "ok.pdf", ContentType: "application/pdf", SizeBytes: 20 << 20}, settings))
	err := p.Validate(File{Name: "big.pdf", ContentType: "application/pdf", SizeBytes: 30 << 20}, settings)
	assert.True(t, apperr.IsValidation(err))
}

func TestValidateRejectsDisallowedMimeKind(t *testing.T) {
	p := NewPipeline(&fakeStore{}, 25, nil)
	settings := models.DefaultSettings()
	settings.AllowedMimeKinds = []string{string(models.MimeImage)}

	require.NoError(t, p.Validate(File{Name: "pic.png", ContentType: "image/png", SizeBytes: 1024}, settings))
	err := p.Validate(File{Name: "doc.pdf", ContentType: "application/pdf", SizeBytes: 1024}, settings)
	assert.True(t, apperr.IsValidation(err))
}

func TestValidateRejectsWhenSharingDisabled(t *testing.T) {
	p := NewPipeline(&fakeStore{}, 25, nil)
	settings := models.DefaultSettings()
	settings.AllowFileSharing = false

	err := p.Validate(File{Name: "pic.png", ContentType: "image/png", SizeBytes: 1024}, settings)
	assert.True(t, apperr.IsValidation(err))
}

func TestUploadReportsProgressToCompletion(t *testing.T) {
	store := &fakeStore{}
	p := NewPipeline(store, 25, nil)

	var reports [][2]int64
	att, err := p.Upload(context.Background(), "c1", File{
		Name:        "report.pdf",
		ContentType: "application/pdf",
		SizeBytes:   2048,
		Content:     strings.NewReader(strings.Repeat("x", 2048)),
	}, func(transferred, total int64) {
		reports = append(reports, [2]int64{transferred, total})
	})
	require.NoError(t, err)

	require.NotEmpty(t, reports)
	final := reports[len(reports)-1]
	assert.Equal(t, int64(2048), final[0])
	assert.Equal(t, int64(2048), final[1])

	assert.Equal(t, models.MimeDocument, att.MimeKind)
	assert.Equal(t, int64(2048), att.SizeBytes)
	assert.Contains(t, att.URL, store.uploadedKey)
	assert.True(t, strings.HasPrefix(store.uploadedKey, "c1/"))
}

func TestUploadSanitizesFileName(t *testing.T) {
	store := &fakeStore{}
	p := NewPipeline(store, 25, nil)

	_, err := p.Upload(context.Background(), "c1", File{
		Name:        "../etc/passwd",
		ContentType: "application/octet-stream",
		SizeBytes:   4,
		Content:     strings.NewReader("data"),
	}, nil)
	require.NoError(t, err)
	assert.NotContains(t, strings.TrimPrefix(store.uploadedKey, "c1/"), "/")
}

func TestUploadFailureIsRetryable(t *testing.T) {
	cause := errors.New("connection reset")
	p := NewPipeline(&fakeStore{failWith: cause}, 25, nil)

	_, err := p.Upload(context.Background(), "c1", File{
		Name:        "pic.png",
		ContentType: "image/png",
		SizeBytes:   8,
		Content:     strings.NewReader("imgdata!"),
	}, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsUpload(err))
	assert.ErrorIs(t, err, cause)
}
