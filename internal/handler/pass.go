package handler

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/vibranium-fest/pass-server-go/internal/errors"
	"github.com/vibranium-fest/pass-server-go/internal/middleware"
	"github.com/vibranium-fest/pass-server-go/internal/repository"
	"github.com/vibranium-fest/pass-server-go/internal/service"
	"github.com/vibranium-fest/pass-server-go/internal/ticket"
)

// PassHandler serves the attendee's own credential: load it, refresh it,
// download it as a shareable ticket, or mail it.
type PassHandler struct {
	issuer      *service.IssuerService
	compositor  *ticket.Compositor
	mailer      *service.MailerService
	profileRepo repository.ProfileRepository
}

func NewPassHandler(
	issuer *service.IssuerService,
	compositor *ticket.Compositor,
	mailer *service.MailerService,
	profileRepo repository.ProfileRepository,
) *PassHandler {
	return &PassHandler{
		issuer:      issuer,
		compositor:  compositor,
		mailer:      mailer,
		profileRepo: profileRepo,
	}
}

func (h *PassHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetPass)
	r.Post("/refresh", h.RefreshPass)
	r.Get("/ticket", h.DownloadTicket)
	r.Post("/email", h.EmailPass)

	return r
}

// GET /v1/pass
func (h *PassHandler) GetPass(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())

	cred, err := h.issuer.LoadOrIssue(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatCredential(cred))
}

// POST /v1/pass/refresh
func (h *PassHandler) RefreshPass(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())

	cred, err := h.issuer.Refresh(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatCredential(cred))
}

// GET /v1/pass/ticket
func (h *PassHandler) DownloadTicket(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	ctx := r.Context()

	cred, err := h.issuer.LoadOrIssue(ctx, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.profileRepo.FindByID(ctx, ownerID)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	if profile == nil {
		writeError(w, apperrors.NotFound("Profile"))
		return
	}

	dataURL, err := h.compositor.Compose(profile.Name, cred.ParticipantID, cred.SymbolImage)
	if err != nil {
		// Missing or corrupt artwork must not cost the participant their
		// pass: fall back to the bare scannable symbol.
		if apperrors.GetCode(err) == apperrors.ErrCodeAssetLoad {
			log.Warn().Err(err).Str("ownerId", ownerID).Msg("ticket artwork unavailable, serving bare symbol")
			h.servePNG(w, cred.SymbolImage, cred.ParticipantID)
			return
		}
		log.Error().Err(err).Str("ownerId", ownerID).Msg("ticket composition failed")
		writeError(w, err)
		return
	}

	h.servePNG(w, dataURL, cred.ParticipantID)
}

func (h *PassHandler) servePNG(w http.ResponseWriter, dataURL, participantID string) {
	pngBytes, err := decodeDataURL(dataURL)
	if err != nil {
		writeError(w, apperrors.Internal("ticket image is not a valid data URL").WithCause(err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ticket.Filename(participantID)))
	w.WriteHeader(http.StatusOK)
	w.Write(pngBytes)
}

// POST /v1/pass/email
func (h *PassHandler) EmailPass(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	ctx := r.Context()

	var req struct {
		EventDetails string `json:"eventDetails"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if !h.mailer.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{"queued": false, "reason": "mailer disabled"})
		return
	}

	cred, err := h.issuer.LoadOrIssue(ctx, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.profileRepo.FindByID(ctx, ownerID)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	if profile == nil {
		writeError(w, apperrors.NotFound("Profile"))
		return
	}

	h.mailer.SendPassEmailAsync(profile, cred, req.EventDetails)

	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

func decodeDataURL(dataURL string) ([]byte, error) {
	_, encoded, found := strings.Cut(dataURL, ";base64,")
	if !found {
		return nil, fmt.Errorf("missing base64 marker")
	}
	return base64.StdEncoding.DecodeString(encoded)
}
