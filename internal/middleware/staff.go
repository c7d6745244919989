package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vibranium-fest/pass-server-go/internal/audit"
	"github.com/vibranium-fest/pass-server-go/internal/model"
	"github.com/vibranium-fest/pass-server-go/internal/repository"
	"github.com/vibranium-fest/pass-server-go/internal/util"
)

type contextKey string

const StaffContextKey contextKey = "staff"

func GetStaff(ctx context.Context) *model.StaffAccount {
	if staff, ok := ctx.Value(StaffContextKey).(*model.StaffAccount); ok {
		return staff
	}
	return nil
}

// StaffAuthMiddleware authenticates check-in operators by opaque bearer
// token. Tokens are stored hashed; a disabled account fails lookup.
type StaffAuthMiddleware struct {
	staffRepo repository.StaffRepository
}

func NewStaffAuthMiddleware(staffRepo repository.StaffRepository) *StaffAuthMiddleware {
	return &StaffAuthMiddleware{staffRepo: staffRepo}
}

func (m *StaffAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		tokenHash := util.HashToken(token)
		staff, err := m.staffRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("staff auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if staff == nil {
			audit.Log(r.Context(), audit.Event{
				Type: audit.EventAuthFailure,
				IP:   r.RemoteAddr,
			})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), StaffContextKey, staff)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireOrganizer gates the administrative endpoints (undo, bulk
// issuance) to the organizer role.
func RequireOrganizer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		staff := GetStaff(r.Context())
		if staff == nil || staff.Role != model.StaffRoleOrganizer {
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error": "Organizer role required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractToken prefers the query parameter so EventSource clients, which
// cannot set headers, can authenticate the live feed.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
