package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const OwnerContextKey contextKey = "owner"

func GetOwnerID(ctx context.Context) string {
	if ownerID, ok := ctx.Value(OwnerContextKey).(string); ok {
		return ownerID
	}
	return ""
}

// AttendeeAuthMiddleware verifies session JWTs minted by the identity
// provider. The subject claim is the owner ID every attendee route keys on;
// this service only verifies, it never issues.
type AttendeeAuthMiddleware struct {
	secret []byte
}

func NewAttendeeAuthMiddleware(secret string) *AttendeeAuthMiddleware {
	return &AttendeeAuthMiddleware{secret: []byte(secret)}
}

func (m *AttendeeAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractToken(r)
		if tokenString == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			log.Warn().Err(err).Msg("attendee auth: invalid session token")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), OwnerContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
