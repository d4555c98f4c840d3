package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tablemate/tablemate/internal/auth"
	"github.com/tablemate/tablemate/internal/handler/dto"
	"github.com/tablemate/tablemate/internal/model"
	"github.com/tablemate/tablemate/internal/service"
)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID string) (*auth.IssuedToken, error)
}

// TokenRevoker remembers logged-out token ids until they expire.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// AuthHandler handles registration and sessions.
type AuthHandler struct {
	users   *service.UserService
	tokens  TokenIssuer
	revoker TokenRevoker
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. revoker may be nil, in which
// case logout is accepted but the token stays valid until it expires.
func NewAuthHandler(users *service.UserService, tokens TokenIssuer, revoker TokenRevoker, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:   users,
		tokens:  tokens,
		revoker: revoker,
		logger:  logger.With("component", "handler.auth"),
	}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user_registered", "user_id", user.ID)
	h.respondWithToken(w, r, http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user)
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, dto.CodeUnauthorized, "Invalid or missing bearer token")
		return
	}

	if h.revoker == nil {
		h.logger.Debug("logout without revocation store", "user_id", authCtx.UserID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.revoker.RevokeToken(r.Context(), authCtx.TokenID, authCtx.ExpiresAt); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user_logged_out", "user_id", authCtx.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user *model.User) {
	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, status, dto.TokenResponse{
		AccessToken: token.Token,
		TokenType:   "Bearer",
		ExpiresAt:   token.ExpiresAt,
		User:        user,
	})
}
