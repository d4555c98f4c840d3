package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tablemate/tablemate/internal/handler/dto"
	"github.com/tablemate/tablemate/internal/middleware"
	"github.com/tablemate/tablemate/internal/service"
	"github.com/tablemate/tablemate/internal/validation"
)

// errorMapping pairs a service sentinel with its HTTP representation.
// More specific errors come first.
type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var serviceErrors = []errorMapping{
	{service.ErrInvalidInput, http.StatusBadRequest, dto.CodeValidationFailed, ""},
	{service.ErrUploadRejected, http.StatusBadRequest, dto.CodeUploadRejected, ""},
	{service.ErrUnauthorized, http.StatusUnauthorized, dto.CodeUnauthorized, "Invalid email or password"},
	{service.ErrSelfJoinForbidden, http.StatusForbidden, dto.CodeSelfJoinForbidden, "Hosts cannot join their own event"},
	{service.ErrForbidden, http.StatusForbidden, dto.CodeForbidden, ""},
	{service.ErrNotFound, http.StatusNotFound, dto.CodeNotFound, ""},
	{service.ErrAlreadyJoined, http.StatusConflict, dto.CodeAlreadyJoined, "Already joined this event"},
	{service.ErrEventFull, http.StatusConflict, dto.CodeEventFull, "Event is full"},
	{service.ErrAlreadyDeleted, http.StatusConflict, dto.CodeAlreadyDeleted, "Already deleted"},
	{service.ErrCapacityConflict, http.StatusConflict, dto.CodeCapacityConflict, ""},
	{service.ErrJoinConflict, http.StatusConflict, dto.CodeJoinConflict, "Join could not be completed, please retry"},
	{service.ErrConflict, http.StatusConflict, dto.CodeConflict, ""},
}

// writeServiceError maps service errors to the error envelope. Unknown
// errors are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, m := range serviceErrors {
		if !errors.Is(err, m.err) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = describe(err, m.err)
		}
		writeError(w, m.status, m.code, msg)
		return
	}

	logger.Error("internal error",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetRequestID(r.Context()),
	)
	writeError(w, http.StatusInternalServerError, dto.CodeInternal, "An internal error occurred")
}

// describe builds a client message from a wrapped sentinel. Field errors
// are reported as "<field>: <problem>".
func describe(err, sentinel error) string {
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	for {
		rest, ok := strings.CutPrefix(msg, sentinel.Error()+": ")
		if !ok {
			break
		}
		msg = rest
	}
	if msg == "" {
		return sentinel.Error()
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
