package attachments

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// BlobStore is the abstract binary store the pipeline uploads into.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, onProgress ProgressFunc) (string, error)
	Delete(ctx context.Context, key string) error
}

// S3Store uploads attachments to S3 through the multipart upload manager,
// which gives resumable transfers for large files.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	region     string
	publicRead bool
}

// NewS3Store constructs an S3Store from the ambient AWS config. With
// publicRead set, uploaded objects get the public-read canned ACL so the
// returned URLs resolve without signing.
func NewS3Store(ctx context.Context, region, bucket string, publicRead bool) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucket:     bucket,
		region:     region,
		publicRead: publicRead,
	}, nil
}

// Upload transfers the blob and returns its durable URL. Progress is
// reported as bytes stream into the uploader and is driven to
// (total, total) once the store acknowledges the whole object.
func (s *S3Store) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, onProgress ProgressFunc) (string, error) {
	body := newProgressReader(r, size, onProgress)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if s.publicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	_, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(size, size)
	}

	escaped := url.PathEscape(key)
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped), nil
}

// Delete removes the blob. Used only by out-of-band cleanup; orphans from
// failed message creation are tolerated garbage.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

var _ BlobStore = (*S3Store)(nil)
