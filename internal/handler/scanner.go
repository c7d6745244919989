package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/vibranium-fest/pass-server-go/internal/errors"
	"github.com/vibranium-fest/pass-server-go/internal/middleware"
	"github.com/vibranium-fest/pass-server-go/internal/model"
	"github.com/vibranium-fest/pass-server-go/internal/service"
)

// ScannerHandler drives one operator's scan surface: session lifecycle,
// camera failure reporting and decode submission.
type ScannerHandler struct {
	intake *service.IntakeService
}

func NewScannerHandler(intake *service.IntakeService) *ScannerHandler {
	return &ScannerHandler{intake: intake}
}

func (h *ScannerHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/sessions", h.CreateSession)
	r.Get("/sessions/{sessionID}", h.GetSession)
	r.Post("/sessions/{sessionID}/start", h.Start)
	r.Post("/sessions/{sessionID}/pause", h.Pause)
	r.Post("/sessions/{sessionID}/resume", h.Resume)
	r.Post("/sessions/{sessionID}/stop", h.Stop)
	r.Post("/sessions/{sessionID}/camera-error", h.ReportCameraError)
	r.Post("/sessions/{sessionID}/scan", h.Scan)

	return r
}

// POST /staff/scanner/sessions
func (h *ScannerHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	staff := middleware.GetStaff(r.Context())

	var req struct {
		EventID string  `json:"eventId"`
		Zone    *string `json:"zone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}

	session, err := h.intake.CreateSession(r.Context(), staff.ID, req.EventID, req.Zone)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, formatSession(session))
}

// GET /staff/scanner/sessions/{sessionID}
func (h *ScannerHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.intake.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, formatSession(session))
}

// POST /staff/scanner/sessions/{sessionID}/start
func (h *ScannerHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.intake.Start)
}

// POST /staff/scanner/sessions/{sessionID}/pause
func (h *ScannerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.intake.Pause)
}

// POST /staff/scanner/sessions/{sessionID}/resume
func (h *ScannerHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.intake.Resume)
}

// POST /staff/scanner/sessions/{sessionID}/stop
func (h *ScannerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.intake.Stop)
}

// POST /staff/scanner/sessions/{sessionID}/camera-error
func (h *ScannerHandler) ReportCameraError(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}

	session, err := h.intake.ReportCameraError(r.Context(), chi.URLParam(r, "sessionID"), model.CameraError(req.Kind))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatSession(session))
}

// POST /staff/scanner/sessions/{sessionID}/scan
func (h *ScannerHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}
	if req.Payload == "" {
		writeError(w, apperrors.MissingRequired("payload"))
		return
	}

	result, err := h.intake.Submit(r.Context(), chi.URLParam(r, "sessionID"), req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ScannerHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (*model.ScannerSession, error)) {
	session, err := fn(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, formatSession(session))
}
