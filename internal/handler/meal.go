package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tablemate/tablemate/internal/auth"
	"github.com/tablemate/tablemate/internal/media"
	"github.com/tablemate/tablemate/internal/service"
)

// MealHandler handles HTTP requests for the meal catalog.
type MealHandler struct {
	svc    *service.MealService
	logger *slog.Logger
}

// NewMealHandler creates a new MealHandler.
func NewMealHandler(svc *service.MealService, logger *slog.Logger) *MealHandler {
	return &MealHandler{
		svc:    svc,
		logger: logger.With("component", "handler.meal"),
	}
}

// Create handles POST /api/v1/meals. The body is JSON, or a multipart form
// with title, description, ingredients and an optional image.
func (h *MealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		input service.CreateMealInput
		img   *media.Upload
	)

	if isMultipart(r) {
		f := parseForm(w, r)
		if f == nil {
			return
		}
		input = service.CreateMealInput{
			Title:       f.text("title"),
			Description: f.text("description"),
			Ingredients: f.text("ingredients"),
		}
		var ok bool
		if img, ok = uploadedImage(w, r); !ok {
			return
		}
	} else if !decodeJSON(w, r, &input) {
		return
	}

	meal, err := h.svc.Create(r.Context(), auth.UserIDFromContext(r.Context()), input, img)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("meal_created", "meal_id", meal.ID, "owner_id", meal.OwnerID, "has_image", img != nil)
	writeJSON(w, http.StatusCreated, meal)
}

// Get handles GET /api/v1/meals/{id}.
func (h *MealHandler) Get(w http.ResponseWriter, r *http.Request) {
	meal, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meal)
}

// Update handles PATCH /api/v1/meals/{id}.
func (h *MealHandler) Update(w http.ResponseWriter, r *http.Request) {
	var (
		input service.UpdateMealInput
		img   *media.Upload
	)

	if isMultipart(r) {
		f := parseForm(w, r)
		if f == nil {
			return
		}
		input = service.UpdateMealInput{
			Title:       f.str("title"),
			Description: f.str("description"),
			Ingredients: f.str("ingredients"),
		}
		var ok bool
		if img, ok = uploadedImage(w, r); !ok {
			return
		}
	} else if !decodeJSON(w, r, &input) {
		return
	}

	meal, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context()), input, img)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("meal_updated", "meal_id", meal.ID)
	writeJSON(w, http.StatusOK, meal)
}

// Delete handles DELETE /api/v1/meals/{id}.
func (h *MealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.SoftDelete(r.Context(), id, auth.UserIDFromContext(r.Context())); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("meal_deleted", "meal_id", id)
	w.WriteHeader(http.StatusNoContent)
}
