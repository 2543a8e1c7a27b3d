// Package uploads stores prompt images on local disk in demo mode and in S3
// otherwise.
package uploads

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"
)

// Placeholder dimensions reported when an image cannot be measured.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

var ErrNoFiles = errors.New("No files provided")

type File struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type Uploader interface {
	Upload(ctx context.Context, name, contentType string, body io.Reader) (*File, error)
	Delete(ctx context.Context, publicID string) error
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// objectName returns a fresh ksuid name that keeps the upload's extension.
func objectName(name, contentType string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" || len(ext) > 6 {
		ext = extensions[contentType]
	}
	return ksuid.New().String() + ext
}

// validPublicID rejects ids that could escape the upload root.
func validPublicID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}
