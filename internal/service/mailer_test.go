package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vibranium-fest/pass-server-go/internal/errors"
	"github.com/vibranium-fest/pass-server-go/internal/model"
)

func mailerFixtures() (*model.Profile, *model.Credential) {
	owner := &model.Profile{
		ID:    "owner-1",
		Email: "dana@example.com",
		Name:  "Dana Park",
	}
	cred := &model.Credential{
		ParticipantID: "VIBABCD1234",
		OwnerID:       "owner-1",
		Payload:       "VIBABCD1234",
		SymbolImage:   "data:image/png;base64,abc",
	}
	return owner, cred
}

func TestSendPassEmail(t *testing.T) {
	var received PassMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(mailerResponse{Success: true, MessageID: "msg-42"})
	}))
	defer server.Close()

	owner, cred := mailerFixtures()
	svc := NewMailerService(server.URL)

	err := svc.SendPassEmail(context.Background(), owner, cred, "Vibranium 2026")
	require.NoError(t, err)

	assert.Equal(t, "Vibranium 2026", received.EventDetails)
	assert.Equal(t, "dana@example.com", received.UserEmail)
	assert.Equal(t, "VIBABCD1234", received.ParticipantID)
	assert.Equal(t, cred.SymbolImage, received.QRDataURL)
}

func TestSendPassEmailRelayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(mailerResponse{Success: false, Error: "smtp unavailable"})
	}))
	defer server.Close()

	owner, cred := mailerFixtures()
	svc := NewMailerService(server.URL)

	err := svc.SendPassEmail(context.Background(), owner, cred, "Vibranium 2026")
	assert.Equal(t, apperrors.ErrCodeExternal, apperrors.GetCode(err))
}

func TestSendPassEmailSuccessFlagRequired(t *testing.T) {
	// 200 with success=false still counts as a failure.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mailerResponse{Success: false, Error: "template missing"})
	}))
	defer server.Close()

	owner, cred := mailerFixtures()
	svc := NewMailerService(server.URL)

	err := svc.SendPassEmail(context.Background(), owner, cred, "Vibranium 2026")
	assert.Equal(t, apperrors.ErrCodeExternal, apperrors.GetCode(err))
}

func TestSendPassEmailDisabled(t *testing.T) {
	owner, cred := mailerFixtures()
	svc := NewMailerService("")

	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.SendPassEmail(context.Background(), owner, cred, "Vibranium 2026"))
}
