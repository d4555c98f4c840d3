package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablemate/tablemate/internal/media"
	"github.com/tablemate/tablemate/internal/repository"
	"github.com/tablemate/tablemate/internal/validation"
)

type brokenHasher struct{ plainHasher }

var errHasherDown = errors.New("hasher down")

func (brokenHasher) Hash(string) (string, error) { return "", errHasherDown }

func TestNewUserService_HasherFailure(t *testing.T) {
	t.Parallel()

	svc, err := NewUserService(repository.NewMemoryStore(), brokenHasher{}, nil, nil)
	assert.Nil(t, svc)
	assert.ErrorIs(t, err, errHasherDown)
}

func TestRegister(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.Register(ctx, RegisterInput{
		Name:     " Dana ",
		Email:    " Dana@Example.com ",
		Password: "long enough",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dana", u.Name)
	assert.Equal(t, "dana@example.com", u.Email)
	assert.NotEqual(t, "long enough", u.CredentialHash)

	_, err = f.users.Register(ctx, RegisterInput{Name: "Dana 2", Email: "DANA@example.com", Password: "long enough"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, uint64(1), f.recorder.Snapshot().UsersRegistered)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name  string
		input RegisterInput
		field string
	}{
		{"short password", RegisterInput{Name: "A", Email: "a@example.com", Password: "short"}, "password"},
		{"bad email", RegisterInput{Name: "A", Email: "not-an-email", Password: "long enough"}, "email"},
		{"blank name", RegisterInput{Name: "  ", Email: "a@example.com", Password: "long enough"}, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Register(context.Background(), tt.input)
			require.ErrorIs(t, err, ErrInvalidInput)

			var fe *validation.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	u := f.user(t, "Erin")

	got, err := f.users.Authenticate(ctx, "ERIN@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.users.Authenticate(ctx, "erin@example.com", "wrong horse")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = f.users.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	u := f.user(t, "Frank")
	other := f.user(t, "Grace")

	_, err := f.users.UpdateProfile(ctx, u.ID, other.ID, UpdateProfileInput{Bio: strPtr("hi")})
	assert.ErrorIs(t, err, ErrNotProfileOwner)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.users.UpdateProfile(ctx, u.ID, u.ID, UpdateProfileInput{
		University: strPtr("TU Delft"),
		Bio:        strPtr("baker"),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.University)
	assert.Equal(t, "TU Delft", *updated.University)

	same, err := f.users.UpdateProfile(ctx, u.ID, u.ID, UpdateProfileInput{})
	require.NoError(t, err)
	assert.Equal(t, "baker", *same.Bio)

	_, err = f.users.UpdateProfile(ctx, u.ID, u.ID, UpdateProfileInput{AvatarURL: strPtr("not a url")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUploadAvatar(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	u := f.user(t, "Heidi")
	other := f.user(t, "Ivan")
	img := media.Upload{ContentType: "image/png", Data: pngBytes}

	_, err := f.users.UploadAvatar(ctx, u.ID, other.ID, img)
	assert.ErrorIs(t, err, ErrNotProfileOwner)

	updated, err := f.users.UploadAvatar(ctx, u.ID, u.ID, img)
	require.NoError(t, err)
	require.NotNil(t, updated.AvatarURL)
	assert.Contains(t, *updated.AvatarURL, "/avatars/")

	_, err = f.users.UploadAvatar(ctx, u.ID, u.ID, media.Upload{ContentType: "image/gif", Data: []byte("GIF89a")})
	assert.ErrorIs(t, err, ErrUploadRejected)
}

func TestSearch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.user(t, fmt.Sprintf("Cook %d", i))
	}
	f.user(t, "Judy")

	empty, err := f.users.Search(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	got, err := f.users.Search(ctx, "cook", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Cook 0", got[0].Name)

	limited, err := f.users.Search(ctx, "EXAMPLE.COM", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
