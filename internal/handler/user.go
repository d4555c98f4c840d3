package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tablemate/tablemate/internal/auth"
	"github.com/tablemate/tablemate/internal/handler/dto"
	"github.com/tablemate/tablemate/internal/service"
)

// UserHandler handles profile endpoints.
type UserHandler struct {
	users         *service.UserService
	meals         *service.MealService
	participation *service.ParticipationService
	logger        *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, meals *service.MealService, participation *service.ParticipationService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:         users,
		meals:         meals,
		participation: participation,
		logger:        logger.With("component", "handler.user"),
	}
}

// Search handles GET /api/v1/users/search?query=&limit=.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := service.DefaultSearchLimit
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	users, err := h.users.Search(r.Context(), query.Get("query"), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(users))
}

// Get handles GET /api/v1/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Update handles PATCH /api/v1/users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateProfileInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context()), input)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UploadAvatar handles POST /api/v1/users/{id}/avatar with a multipart
// "image" part.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		writeError(w, http.StatusBadRequest, dto.CodeUploadRejected, "Expected a multipart form with an image")
		return
	}
	if f := parseForm(w, r); f == nil {
		return
	}
	img, ok := uploadedImage(w, r)
	if !ok {
		return
	}
	if img == nil {
		writeError(w, http.StatusBadRequest, dto.CodeUploadRejected, "Image is required")
		return
	}

	user, err := h.users.UploadAvatar(r.Context(), chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context()), *img)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("avatar_uploaded", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

// Events handles GET /api/v1/users/{id}/events.
func (h *UserHandler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.participation.HostedEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(events))
}

// Meals handles GET /api/v1/users/{id}/meals.
func (h *UserHandler) Meals(w http.ResponseWriter, r *http.Request) {
	meals, err := h.meals.ListByOwner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(meals))
}
