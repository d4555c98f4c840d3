// Package media validates image uploads and hands them to a blob store.
package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxUploadSize is the largest accepted image.
const MaxUploadSize = 5 << 20

// Upload rejections. All of them match ErrRejected.
var (
	ErrRejected        = errors.New("upload rejected")
	ErrEmpty           = fmt.Errorf("%w: file is empty", ErrRejected)
	ErrTooLarge        = fmt.Errorf("%w: file too large", ErrRejected)
	ErrUnsupportedType = fmt.Errorf("%w: only JPEG, PNG and WebP images are allowed", ErrRejected)
)

// allowedTypes maps accepted content types to the stored file extension.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Upload is an image received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Store persists blobs and returns the URL they are served from.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Validate checks size and type. The declared content type must be an
// accepted image type and the bytes must sniff as one too. It returns the
// extension to store the file under.
func Validate(u Upload) (string, error) {
	if len(u.Data) == 0 {
		return "", ErrEmpty
	}
	if len(u.Data) > MaxUploadSize {
		return "", fmt.Errorf("%w: %s exceeds %s",
			ErrTooLarge, humanize.IBytes(uint64(len(u.Data))), humanize.IBytes(MaxUploadSize))
	}

	declared := normalizeType(u.ContentType)
	if _, ok := allowedTypes[declared]; !ok {
		return "", fmt.Errorf("%w (got %q)", ErrUnsupportedType, u.ContentType)
	}

	detected := normalizeType(mimetype.Detect(u.Data).String())
	ext, ok := allowedTypes[detected]
	if !ok {
		return "", fmt.Errorf("%w (content is %s)", ErrUnsupportedType, detected)
	}

	return ext, nil
}

func normalizeType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// Key builds a collision-free object key of the form prefix/<uuid>_<unix>.ext.
func Key(prefix, ext string) string {
	return fmt.Sprintf("%s/%s_%d%s", strings.Trim(prefix, "/"), uuid.NewString(), time.Now().Unix(), ext)
}

// Uploader validates uploads and writes them to a Store.
type Uploader struct {
	store Store
}

// NewUploader creates an Uploader backed by store.
func NewUploader(store Store) *Uploader {
	return &Uploader{store: store}
}

// Upload validates u and stores it under prefix. It returns the public URL.
func (up *Uploader) Upload(ctx context.Context, prefix string, u Upload) (string, error) {
	ext, err := Validate(u)
	if err != nil {
		return "", err
	}

	key := Key(prefix, ext)
	url, err := up.store.Put(ctx, key, mimetype.Detect(u.Data).String(), u.Data)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return url, nil
}
