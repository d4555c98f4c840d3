package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tablemate/tablemate/internal/auth"
	"github.com/tablemate/tablemate/internal/handler/dto"
	"github.com/tablemate/tablemate/internal/service"
)

// AdminHandler provides admin-only operational endpoints.
type AdminHandler struct {
	participation *service.ParticipationService
	logger        *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(participation *service.ParticipationService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		participation: participation,
		logger:        logger.With("component", "handler.admin"),
	}
}

// ReconcileResponse reports a reconciliation pass.
type ReconcileResponse struct {
	Timestamp time.Time                `json:"timestamp"`
	Fix       bool                     `json:"fix"`
	Event     *service.ReconcileResult `json:"event,omitempty"`
	Report    *service.ReconcileReport `json:"report,omitempty"`
}

// Reconcile handles POST /api/v1/admin/reconcile. With an event_id it
// checks one event, otherwise every event.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	resp := ReconcileResponse{Timestamp: time.Now().UTC(), Fix: req.Fix}

	if req.EventID != "" {
		result, err := h.participation.Reconcile(r.Context(), req.EventID, req.Fix)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		resp.Event = result
	} else {
		report, err := h.participation.ReconcileAll(r.Context(), req.Fix)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		resp.Report = report
	}

	h.logger.Info("reconcile_requested",
		"admin_id", auth.UserIDFromContext(r.Context()),
		"event_id", req.EventID,
		"fix", req.Fix,
	)
	writeJSON(w, http.StatusOK, resp)
}
