package uploads

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// MaxUploadSize bounds a single image.
const MaxUploadSize = 10 << 20

var ErrTooLarge = errors.New("upload exceeds maximum size")

// ObjectStore is the subset of *s3.Client used here.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 stores uploads under Prefix in Bucket. PublicURL is the base URL the
// bucket is served from.
type S3 struct {
	Client    ObjectStore
	Bucket    string
	Prefix    string
	PublicURL string
}

func NewS3(client ObjectStore, bucket, publicURL string) *S3 {
	if publicURL == "" {
		publicURL = "https://" + bucket + ".s3.amazonaws.com"
	}
	return &S3{
		Client:    client,
		Bucket:    bucket,
		Prefix:    "prompts/",
		PublicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *S3) key(publicID string) string {
	return s.Prefix + publicID
}

func (s *S3) Upload(ctx context.Context, name, contentType string, body io.Reader) (*File, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxUploadSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read upload")
	}
	if len(data) > MaxUploadSize {
		return nil, ErrTooLarge
	}

	object := objectName(name, contentType)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(object)),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.Client.PutObject(ctx, input); err != nil {
		return nil, errors.Wrapf(err, "failed to put object %s in bucket %s", s.key(object), s.Bucket)
	}

	width, height := DefaultWidth, DefaultHeight
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		width, height = cfg.Width, cfg.Height
	}

	zerolog.Ctx(ctx).Debug().
		Str("bucket", s.Bucket).
		Str("key", s.key(object)).
		Int("size", len(data)).
		Msg("Uploaded image to S3")

	return &File{
		PublicID: object,
		URL:      s.PublicURL + "/" + s.key(object),
		Width:    width,
		Height:   height,
	}, nil
}

func (s *S3) Delete(ctx context.Context, publicID string) error {
	if !validPublicID(publicID) {
		return errors.Newf("invalid public id %q", publicID)
	}
	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(publicID)),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to delete object %s from bucket %s", s.key(publicID), s.Bucket)
	}
	return nil
}
