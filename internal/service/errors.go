package service

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every service. Handlers map these to stable
// error codes; entity-specific errors wrap the generic ones so callers can
// match either.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadyJoined     = errors.New("already joined this event")
	ErrEventFull         = errors.New("event is full")
	ErrSelfJoinForbidden = errors.New("host cannot join their own event")
	ErrAlreadyDeleted    = errors.New("already deleted")
	ErrCapacityConflict  = errors.New("max_participants below current participant count")
	ErrUploadRejected    = errors.New("upload rejected")

	// ErrJoinConflict is a retryable storage failure inside the join
	// critical section. Nothing was written.
	ErrJoinConflict = errors.New("join could not be completed, retry")
)

// Entity-specific variants.
var (
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrMealNotFound    = fmt.Errorf("meal %w", ErrNotFound)
	ErrEventNotFound   = fmt.Errorf("event %w", ErrNotFound)
	ErrEmailTaken      = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrBadCredentials  = fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	ErrNotEventHost    = fmt.Errorf("only the event host can do this: %w", ErrForbidden)
	ErrNotMealOwner    = fmt.Errorf("only the meal creator can do this: %w", ErrForbidden)
	ErrNotProfileOwner = fmt.Errorf("users can only edit their own profile: %w", ErrForbidden)
)

// invalid wraps a validation failure so it matches ErrInvalidInput while
// keeping the field-level message.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
