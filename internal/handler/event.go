package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tablemate/tablemate/internal/auth"
	"github.com/tablemate/tablemate/internal/handler/dto"
	"github.com/tablemate/tablemate/internal/media"
	"github.com/tablemate/tablemate/internal/model"
	"github.com/tablemate/tablemate/internal/service"
)

// EventHandler handles HTTP requests for the event registry.
type EventHandler struct {
	events        *service.EventService
	participation *service.ParticipationService
	logger        *slog.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(events *service.EventService, participation *service.ParticipationService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events:        events,
		participation: participation,
		logger:        logger.With("component", "handler.event"),
	}
}

// List handles GET /api/v1/events?host_id=.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.EventFilter{HostID: r.URL.Query().Get("host_id")}

	events, err := h.events.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(events))
}

// Create handles POST /api/v1/events. The body is JSON, or a multipart
// form with the same fields and an optional image.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		input service.CreateEventInput
		img   *media.Upload
	)

	if isMultipart(r) {
		f := parseForm(w, r)
		if f == nil {
			return
		}
		input = service.CreateEventInput{
			MealID:      f.text("meal_id"),
			Title:       f.text("title"),
			Description: f.text("description"),
			Location:    f.text("location"),
			Price:       f.float("price"),
		}
		if n := f.int("max_participants"); n != nil {
			input.MaxParticipants = *n
		}
		if t := f.time("scheduled_at"); t != nil {
			input.ScheduledAt = *t
		}
		if !f.check(w) {
			return
		}
		var ok bool
		if img, ok = uploadedImage(w, r); !ok {
			return
		}
	} else if !decodeJSON(w, r, &input) {
		return
	}

	event, err := h.events.Create(r.Context(), auth.UserIDFromContext(r.Context()), input, img)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("event_created",
		"event_id", event.ID,
		"host_id", event.HostID,
		"max_participants", event.MaxParticipants,
	)
	writeJSON(w, http.StatusCreated, event)
}

// Get handles GET /api/v1/events/{id}. The response includes participants.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	participants, err := h.participation.ListParticipants(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EventDetailResponse{
		EventView:    event,
		Participants: participants,
	})
}

// Update handles PATCH /api/v1/events/{id}.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	var (
		input service.UpdateEventInput
		img   *media.Upload
	)

	if isMultipart(r) {
		f := parseForm(w, r)
		if f == nil {
			return
		}
		input = service.UpdateEventInput{
			Title:           f.str("title"),
			Description:     f.str("description"),
			MaxParticipants: f.int("max_participants"),
			Location:        f.str("location"),
			ScheduledAt:     f.time("scheduled_at"),
			Price:           f.float("price"),
		}
		if !f.check(w) {
			return
		}
		var ok bool
		if img, ok = uploadedImage(w, r); !ok {
			return
		}
	} else if !decodeJSON(w, r, &input) {
		return
	}

	event, err := h.events.Update(r.Context(), chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context()), input, img)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("event_updated", "event_id", event.ID)
	writeJSON(w, http.StatusOK, event)
}

// Delete handles DELETE /api/v1/events/{id}.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.events.SoftDelete(r.Context(), id, auth.UserIDFromContext(r.Context())); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Participants handles GET /api/v1/events/{id}/participants.
func (h *EventHandler) Participants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.participation.ListParticipants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(participants))
}

// Hosted handles GET /api/v1/events/me.
func (h *EventHandler) Hosted(w http.ResponseWriter, r *http.Request) {
	events, err := h.participation.HostedEvents(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(events))
}

// Joined handles GET /api/v1/events/me/joined.
func (h *EventHandler) Joined(w http.ResponseWriter, r *http.Request) {
	events, err := h.participation.JoinedEvents(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(events))
}

// Join handles POST /api/v1/events/{id}/join.
func (h *EventHandler) Join(w http.ResponseWriter, r *http.Request) {
	h.join(w, r, chi.URLParam(r, "id"))
}

// JoinByBody handles POST /api/v1/events/join with {"event_id": "..."}.
func (h *EventHandler) JoinByBody(w http.ResponseWriter, r *http.Request) {
	var req dto.JoinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.join(w, r, req.EventID)
}

func (h *EventHandler) join(w http.ResponseWriter, r *http.Request, eventID string) {
	result, err := h.participation.Join(r.Context(), service.JoinEventRequest{
		EventID:       eventID,
		ParticipantID: auth.UserIDFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("event_joined",
		"event_id", result.EventID,
		"participant_id", auth.UserIDFromContext(r.Context()),
		"current_participants", result.Event.CurrentParticipants,
	)
	writeJSON(w, http.StatusOK, result)
}
