package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 32)...)
	webpBytes = append([]byte("RIFF\x24\x00\x00\x00WEBPVP8 "), make([]byte, 32)...)
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		upload  Upload
		wantExt string
		wantErr error
	}{
		{"png", Upload{ContentType: "image/png", Data: pngBytes}, ".png", nil},
		{"jpeg", Upload{ContentType: "image/jpeg", Data: jpegBytes}, ".jpg", nil},
		{"jpg alias", Upload{ContentType: "image/jpg", Data: jpegBytes}, ".jpg", nil},
		{"webp", Upload{ContentType: "image/webp", Data: webpBytes}, ".webp", nil},
		{"content type params", Upload{ContentType: "image/png; charset=binary", Data: pngBytes}, ".png", nil},
		{"empty", Upload{ContentType: "image/png"}, "", ErrEmpty},
		{"gif declared", Upload{ContentType: "image/gif", Data: []byte("GIF89a")}, "", ErrUnsupportedType},
		{"text disguised as png", Upload{ContentType: "image/png", Data: []byte("hello world, not an image")}, "", ErrUnsupportedType},
		{"too large", Upload{ContentType: "image/png", Data: make([]byte, MaxUploadSize+1)}, "", ErrTooLarge},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ext, err := Validate(tt.upload)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrRejected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestValidate_ExactlyMaxSize(t *testing.T) {
	t.Parallel()

	data := make([]byte, MaxUploadSize)
	copy(data, pngBytes)

	_, err := Validate(Upload{ContentType: "image/png", Data: data})
	assert.NoError(t, err)
}

func TestKey(t *testing.T) {
	t.Parallel()

	key := Key("/meals/", ".png")
	assert.Regexp(t, regexp.MustCompile(`^meals/[0-9a-f-]{36}_\d+\.png$`), key)
	assert.NotEqual(t, key, Key("meals", ".png"))
}

func TestUploader_DiskStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewDiskStore(dir, "http://localhost:8080/media/")
	require.NoError(t, err)

	up := NewUploader(store)
	url, err := up.Upload(context.Background(), "avatars", Upload{ContentType: "image/png", Data: pngBytes})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(url, "http://localhost:8080/media/avatars/"), url)

	rel := strings.TrimPrefix(url, "http://localhost:8080/media/")
	got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(pngBytes, got))
}

func TestUploader_RejectsBeforeStore(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	_, err := NewUploader(store).Upload(context.Background(), "meals", Upload{ContentType: "text/plain", Data: []byte("x")})

	assert.True(t, errors.Is(err, ErrRejected))
	assert.Zero(t, store.calls)
}

func TestDiskStore_RejectsEscapingKey(t *testing.T) {
	t.Parallel()

	store, err := NewDiskStore(t.TempDir(), "/media")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside.png", "image/png", pngBytes)
	assert.Error(t, err)
}

type recordingStore struct{ calls int }

func (s *recordingStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	s.calls++
	return "/" + key, nil
}
