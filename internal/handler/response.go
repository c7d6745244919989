package handler

import (
	"net/http"
	"time"

	"github.com/vibranium-fest/pass-server-go/internal/httputil"
	"github.com/vibranium-fest/pass-server-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func formatCredential(cred *model.Credential) map[string]any {
	return map[string]any{
		"participantId": cred.ParticipantID,
		"qrCode":        cred.Payload,
		"qrDataUrl":     cred.SymbolImage,
		"issuedAt":      cred.IssuedAt.Format(time.RFC3339),
	}
}

func formatSession(session *model.ScannerSession) map[string]any {
	return map[string]any{
		"id":          session.ID,
		"eventId":     session.EventID,
		"zone":        session.Zone,
		"state":       session.State,
		"cameraError": session.CameraError,
		"createdAt":   session.CreatedAt.Format(time.RFC3339),
		"expiresAt":   session.ExpiresAt.Format(time.RFC3339),
	}
}
