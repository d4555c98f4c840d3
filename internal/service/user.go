package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tablemate/tablemate/internal/media"
	"github.com/tablemate/tablemate/internal/metrics"
	"github.com/tablemate/tablemate/internal/model"
	"github.com/tablemate/tablemate/internal/repository"
	"github.com/tablemate/tablemate/internal/validation"
)

// Search limits.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// PasswordHasher hashes and checks credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// UserService handles registration, authentication and profiles.
type UserService struct {
	users    UserStore
	hasher   PasswordHasher
	uploader Uploader
	metrics  metrics.Recorder

	// dummyHash is verified against when the email is unknown so both
	// branches of Authenticate cost the same.
	dummyHash string
}

// NewUserService creates a new UserService. It fails when the hasher cannot
// produce the hash used for unknown emails.
func NewUserService(users UserStore, hasher PasswordHasher, uploader Uploader, recorder metrics.Recorder) (*UserService, error) {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	dummy, err := hasher.Hash("tablemate-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	return &UserService{
		users:     users,
		hasher:    hasher,
		uploader:  uploader,
		metrics:   recorder,
		dummyHash: dummy,
	}, nil
}

// RegisterInput defines input for creating an account.
type RegisterInput struct {
	Name       string  `json:"name" validate:"required,notblank,max=100"`
	Email      string  `json:"email" validate:"required,email,max=254"`
	Password   string  `json:"password" validate:"required,min=8,max=128"`
	University *string `json:"university" validate:"omitempty,max=200"`
}

// Register creates a user with a hashed credential.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	input.Email = normalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if err := validation.Struct(ctx, input); err != nil {
		return nil, invalid(err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:             generateULID(),
		Name:           input.Name,
		Email:          input.Email,
		CredentialHash: hash,
		University:     input.University,
		CreatedAt:      now(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.metrics.IncUserRegistered()
	return user, nil
}

// Authenticate checks an email/password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = s.hasher.Verify(password, s.dummyHash)
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(password, user.CredentialHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrBadCredentials
	}
	return user, nil
}

// GetByID returns a user. The credential hash is never serialized.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetByEmail returns a user including the credential hash.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfileInput defines the editable profile fields.
type UpdateProfileInput struct {
	University *string `json:"university" validate:"omitempty,max=200"`
	Bio        *string `json:"bio" validate:"omitempty,max=1000"`
	AvatarURL  *string `json:"avatar_url" validate:"omitempty,url,max=2048"`
}

// UpdateProfile changes the caller's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID, callerID string, input UpdateProfileInput) (*model.User, error) {
	if userID != callerID {
		return nil, ErrNotProfileOwner
	}
	if err := validation.Struct(ctx, input); err != nil {
		return nil, invalid(err)
	}

	patch := model.ProfilePatch{
		University: input.University,
		Bio:        input.Bio,
		AvatarURL:  input.AvatarURL,
	}
	if patch.IsEmpty() {
		return s.GetByID(ctx, userID)
	}

	user, err := s.users.UpdateUserProfile(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// UploadAvatar stores an image and points the caller's avatar at it.
func (s *UserService) UploadAvatar(ctx context.Context, userID, callerID string, image media.Upload) (*model.User, error) {
	if userID != callerID {
		return nil, ErrNotProfileOwner
	}
	if _, err := s.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	url, err := upload(ctx, s.uploader, "avatars", &image)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UpdateUserProfile(ctx, userID, model.ProfilePatch{AvatarURL: url})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update avatar: %w", err)
	}
	return user, nil
}

// Search finds users whose name, email or university contains query.
func (s *UserService) Search(ctx context.Context, query string, limit int) ([]*model.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*model.User{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	return s.users.SearchUsers(ctx, query, limit)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
