package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/vibranium-fest/pass-server-go/internal/errors"
	"github.com/vibranium-fest/pass-server-go/internal/middleware"
	"github.com/vibranium-fest/pass-server-go/internal/repository"
	"github.com/vibranium-fest/pass-server-go/internal/service"
)

// CheckinHandler covers manual-entry redemption, the staff undo and the
// per-event check-in listing.
type CheckinHandler struct {
	intake     *service.IntakeService
	redemption *service.RedemptionService
	auditRepo  repository.CheckinAuditRepository
}

func NewCheckinHandler(
	intake *service.IntakeService,
	redemption *service.RedemptionService,
	auditRepo repository.CheckinAuditRepository,
) *CheckinHandler {
	return &CheckinHandler{
		intake:     intake,
		redemption: redemption,
		auditRepo:  auditRepo,
	}
}

func (h *CheckinHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.ManualCheckin)
	r.With(middleware.RequireOrganizer).Post("/undo", h.UndoCheckin)

	return r
}

// POST /staff/checkin
func (h *CheckinHandler) ManualCheckin(w http.ResponseWriter, r *http.Request) {
	staff := middleware.GetStaff(r.Context())

	var req struct {
		Token   string  `json:"token"`
		EventID string  `json:"eventId"`
		Zone    *string `json:"zone"`
		Notes   *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}
	if req.Token == "" {
		writeError(w, apperrors.MissingRequired("token"))
		return
	}

	result, err := h.intake.SubmitManual(r.Context(), req.Token, req.EventID, staff.ID, req.Zone, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /staff/checkin/undo
func (h *CheckinHandler) UndoCheckin(w http.ResponseWriter, r *http.Request) {
	staff := middleware.GetStaff(r.Context())

	var req struct {
		EventID string `json:"eventId"`
		OwnerID string `json:"ownerId"`
		Confirm bool   `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}
	if req.EventID == "" {
		writeError(w, apperrors.MissingRequired("eventId"))
		return
	}
	if req.OwnerID == "" {
		writeError(w, apperrors.MissingRequired("ownerId"))
		return
	}
	if !req.Confirm {
		writeError(w, apperrors.ValidationError("undo requires explicit confirmation"))
		return
	}

	if err := h.redemption.Undo(r.Context(), req.EventID, req.OwnerID, staff.ID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"undone": true})
}

// GET /staff/events/{eventID}/checkins
func (h *CheckinHandler) ListCheckins(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	pagination := ParsePagination(r)
	ctx := r.Context()

	checkins, err := h.auditRepo.FindByEvent(ctx, eventID, pagination.Limit, pagination.Offset)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}

	total, err := h.auditRepo.CountByEvent(ctx, eventID)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"checkins": checkins,
		"total":    total,
		"limit":    pagination.Limit,
		"offset":   pagination.Offset,
	})
}
