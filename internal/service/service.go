package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tablemate/tablemate/internal/activity"
	"github.com/tablemate/tablemate/internal/media"
)

// ActivityPublisher receives event lifecycle notifications. Publishing
// must not block or fail the caller.
type ActivityPublisher interface {
	PublishAsync(a activity.Activity)
}

// Uploader stores validated images.
type Uploader interface {
	Upload(ctx context.Context, prefix string, u media.Upload) (string, error)
}

type noopPublisher struct{}

func (noopPublisher) PublishAsync(activity.Activity) {}

func generateULID() string {
	return ulid.Make().String()
}

func now() time.Time {
	return time.Now().UTC()
}

func upload(ctx context.Context, up Uploader, prefix string, u *media.Upload) (*string, error) {
	if u == nil {
		return nil, nil
	}
	if up == nil {
		return nil, fmt.Errorf("%w: image uploads are disabled", ErrUploadRejected)
	}
	url, err := up.Upload(ctx, prefix, *u)
	if err != nil {
		if errors.Is(err, media.ErrRejected) {
			return nil, fmt.Errorf("%w: %v", ErrUploadRejected, err)
		}
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return &url, nil
}
