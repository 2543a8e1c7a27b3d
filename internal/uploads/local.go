package uploads

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// URLPrefix is where the server mounts the local upload directory.
const URLPrefix = "/uploads/"

// Local writes uploads into Dir.
type Local struct {
	Dir string
}

func (l *Local) Upload(ctx context.Context, name, contentType string, body io.Reader) (*File, error) {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create upload directory %s", l.Dir)
	}

	object := objectName(name, contentType)
	f, err := os.Create(filepath.Join(l.Dir, object))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create upload file")
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, errors.Wrap(err, "failed to write upload")
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close upload file")
	}

	zerolog.Ctx(ctx).Debug().Str("file", object).Msg("Stored local upload")
	return &File{
		PublicID: object,
		URL:      URLPrefix + object,
		Width:    DefaultWidth,
		Height:   DefaultHeight,
	}, nil
}

// Delete removes the file if present. Missing files are not an error.
func (l *Local) Delete(ctx context.Context, publicID string) error {
	if !validPublicID(publicID) {
		return errors.Newf("invalid public id %q", publicID)
	}
	err := os.Remove(filepath.Join(l.Dir, publicID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "failed to delete upload %s", publicID)
	}
	return nil
}
