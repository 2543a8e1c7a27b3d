package uploads

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	l := &Local{Dir: dir}
	ctx := context.Background()

	f, err := l.Upload(ctx, "cover.PNG", "image/png", strings.NewReader("pixels"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(f.PublicID, ".png"))
	assert.Equal(t, "/uploads/"+f.PublicID, f.URL)
	assert.Equal(t, 800, f.Width)
	assert.Equal(t, 600, f.Height)

	data, err := os.ReadFile(filepath.Join(dir, f.PublicID))
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	other, err := l.Upload(ctx, "blob", "image/jpeg", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotEqual(t, f.PublicID, other.PublicID)
	assert.True(t, strings.HasSuffix(other.PublicID, ".jpg"))

	require.NoError(t, l.Delete(ctx, f.PublicID))
	_, err = os.Stat(filepath.Join(dir, f.PublicID))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.NoError(t, l.Delete(ctx, "never-existed.png"))
	assert.Error(t, l.Delete(ctx, "../go.mod"))
	assert.Error(t, l.Delete(ctx, ""))
}

type fakeObjectStore struct {
	puts    []*s3.PutObjectInput
	bodies  [][]byte
	deletes []*s3.DeleteObjectInput
	err     error
}

func (f *fakeObjectStore) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectStore) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectOutput{}, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestS3Upload(t *testing.T) {
	store := &fakeObjectStore{}
	u := NewS3(store, "promptplace-media", "https://cdn.example.com/")
	ctx := context.Background()

	img := pngBytes(t, 32, 16)
	f, err := u.Upload(ctx, "shot.png", "image/png", bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 32, f.Width)
	assert.Equal(t, 16, f.Height)
	assert.Equal(t, "https://cdn.example.com/prompts/"+f.PublicID, f.URL)

	require.Len(t, store.puts, 1)
	assert.Equal(t, "promptplace-media", aws.ToString(store.puts[0].Bucket))
	assert.Equal(t, "prompts/"+f.PublicID, aws.ToString(store.puts[0].Key))
	assert.Equal(t, "image/png", aws.ToString(store.puts[0].ContentType))
	assert.Equal(t, img, store.bodies[0])

	t.Run("undecodable image keeps placeholder size", func(t *testing.T) {
		f, err := u.Upload(ctx, "notes.webp", "image/webp", strings.NewReader("not an image"))
		require.NoError(t, err)
		assert.Equal(t, DefaultWidth, f.Width)
		assert.Equal(t, DefaultHeight, f.Height)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := u.Upload(ctx, "big.png", "image/png", bytes.NewReader(make([]byte, MaxUploadSize+1)))
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("put failure", func(t *testing.T) {
		failing := NewS3(&fakeObjectStore{err: errors.New("access denied")}, "b", "")
		_, err := failing.Upload(ctx, "a.png", "image/png", bytes.NewReader(img))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access denied")
	})
}

func TestS3Delete(t *testing.T) {
	store := &fakeObjectStore{}
	u := NewS3(store, "promptplace-media", "")
	assert.Equal(t, "https://promptplace-media.s3.amazonaws.com", u.PublicURL)

	require.NoError(t, u.Delete(context.Background(), "abc.png"))
	require.Len(t, store.deletes, 1)
	assert.Equal(t, "prompts/abc.png", aws.ToString(store.deletes[0].Key))

	assert.Error(t, u.Delete(context.Background(), "a/b.png"))
	assert.Len(t, store.deletes, 1)
}
