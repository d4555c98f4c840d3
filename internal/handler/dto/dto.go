// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/tablemate/tablemate/internal/model"
	"github.com/tablemate/tablemate/internal/service"
)

// Error codes returned in the error envelope.
const (
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeInvalidJSON       = "INVALID_JSON"
	CodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	CodeUploadRejected    = "UPLOAD_REJECTED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeSelfJoinForbidden = "SELF_JOIN_FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeAlreadyJoined     = "ALREADY_JOINED"
	CodeEventFull         = "EVENT_FULL"
	CodeAlreadyDeleted    = "ALREADY_DELETED"
	CodeCapacityConflict  = "CAPACITY_CONFLICT"
	CodeJoinConflict      = "JOIN_CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrorResponse is the error envelope: {"error":{"code":...,"message":...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a stable machine code and a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: code, Message: message}}
}

// ListResponse wraps a collection.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// NewListResponse builds a ListResponse. A nil slice is rendered as [].
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items, Total: len(items)}
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by register and login.
type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *model.User `json:"user"`
}

// JoinRequest is the body of POST /api/v1/events/join.
type JoinRequest struct {
	EventID string `json:"event_id"`
}

// EventDetailResponse is an event together with its participants.
type EventDetailResponse struct {
	*service.EventView
	Participants []*service.Participant `json:"participants"`
}

// ReconcileRequest is the body of POST /api/v1/admin/reconcile. An empty
// EventID checks every event.
type ReconcileRequest struct {
	EventID string `json:"event_id,omitempty"`
	Fix     bool   `json:"fix"`
}
