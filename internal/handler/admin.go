package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vibranium-fest/pass-server-go/internal/middleware"
	"github.com/vibranium-fest/pass-server-go/internal/service"
)

const defaultBackfillLimit = 500

// AdminHandler holds organizer-only maintenance operations.
type AdminHandler struct {
	issuer *service.IssuerService
}

func NewAdminHandler(issuer *service.IssuerService) *AdminHandler {
	return &AdminHandler{issuer: issuer}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireOrganizer)

	r.Post("/issue-missing", h.IssueMissing)

	return r
}

// POST /staff/passes/issue-missing
func (h *AdminHandler) IssueMissing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Limit <= 0 {
		req.Limit = defaultBackfillLimit
	}

	issued, err := h.issuer.IssueMissing(r.Context(), req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"issued": issued})
}
