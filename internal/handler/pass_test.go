package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibranium-fest/pass-server-go/internal/middleware"
	"github.com/vibranium-fest/pass-server-go/internal/model"
	"github.com/vibranium-fest/pass-server-go/internal/qr"
	"github.com/vibranium-fest/pass-server-go/internal/service"
	"github.com/vibranium-fest/pass-server-go/internal/ticket"
)

func writeTestBackground(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 700))
	for y := 0; y < 700; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 24, B: 48, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "background.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func newPassFixture(t *testing.T, mailerURL string) (*PassHandler, *memProfileRepo) {
	t.Helper()
	profiles := newMemProfileRepo(&model.Profile{
		ID:    "owner-1",
		Email: "dana@example.com",
		Name:  "Dana Park",
	})
	regs := newMemRegRepo(&model.EventRegistration{
		EventID: "evt-hack",
		OwnerID: "owner-1",
	})

	issuer := service.NewIssuerService(profiles, regs, qr.Options{})
	compositor := ticket.NewCompositor(writeTestBackground(t))
	mailer := service.NewMailerService(mailerURL)

	return NewPassHandler(issuer, compositor, mailer, profiles), profiles
}

func doOwnerRequest(handler http.Handler, method, target string, body any, ownerID string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req = req.WithContext(context.WithValue(req.Context(), middleware.OwnerContextKey, ownerID))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGetPassIssuesOnFirstLoad(t *testing.T) {
	h, profiles := newPassFixture(t, "")

	rec := doOwnerRequest(h.Routes(), http.MethodGet, "/", nil, "owner-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ParticipantID string `json:"participantId"`
		QRCode        string `json:"qrCode"`
		QRDataURL     string `json:"qrDataUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Regexp(t, `^VIB[A-Z0-9]{8}$`, resp.ParticipantID)
	assert.Equal(t, resp.ParticipantID, resp.QRCode)
	assert.True(t, qr.IsDataURL(resp.QRDataURL))

	// Persisted, so the second load serves the same credential.
	rec = doOwnerRequest(h.Routes(), http.MethodGet, "/", nil, "owner-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var second struct {
		ParticipantID string `json:"participantId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, resp.ParticipantID, second.ParticipantID)

	require.NotNil(t, profiles.profiles["owner-1"].QRCode)
}

func TestGetPassNotEligible(t *testing.T) {
	profiles := newMemProfileRepo(&model.Profile{ID: "owner-2", Name: "No Events"})
	issuer := service.NewIssuerService(profiles, newMemRegRepo(), qr.Options{})
	h := NewPassHandler(issuer, ticket.NewCompositor(writeTestBackground(t)), service.NewMailerService(""), profiles)

	rec := doOwnerRequest(h.Routes(), http.MethodGet, "/", nil, "owner-2")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRefreshPass(t *testing.T) {
	h, _ := newPassFixture(t, "")

	rec := doOwnerRequest(h.Routes(), http.MethodGet, "/", nil, "owner-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var first struct {
		ParticipantID string `json:"participantId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = doOwnerRequest(h.Routes(), http.MethodPost, "/refresh", nil, "owner-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed struct {
		ParticipantID string `json:"participantId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))

	assert.Equal(t, first.ParticipantID, refreshed.ParticipantID)
}

func TestDownloadTicket(t *testing.T) {
	h, _ := newPassFixture(t, "")

	rec := doOwnerRequest(h.Routes(), http.MethodGet, "/ticket", nil, "owner-1")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "vibranium-pass-")

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 700, img.Bounds().Dy())
}

func TestDownloadTicketFallsBackToSymbolWithoutArtwork(t *testing.T) {
	profiles := newMemProfileRepo(&model.Profile{ID: "owner-1", Name: "Dana Park"})
	regs := newMemRegRepo(&model.EventRegistration{EventID: "evt-hack", OwnerID: "owner-1"})
	issuer := service.NewIssuerService(profiles, regs, qr.Options{})
	compositor := ticket.NewCompositor(filepath.Join(t.TempDir(), "missing-background.png"))
	h := NewPassHandler(issuer, compositor, service.NewMailerService(""), profiles)

	rec := doOwnerRequest(h.Routes(), http.MethodGet, "/ticket", nil, "owner-1")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "vibranium-pass-")

	// The degraded download is the bare scannable symbol.
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, qr.DefaultPixelSize, img.Bounds().Dx())
	assert.Equal(t, qr.DefaultPixelSize, img.Bounds().Dy())
}

func TestEmailPass(t *testing.T) {
	delivered := make(chan service.PassMessage, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg service.PassMessage
		json.NewDecoder(r.Body).Decode(&msg)
		delivered <- msg
		json.NewEncoder(w).Encode(map[string]any{"success": true, "messageId": "msg-1"})
	}))
	defer server.Close()

	h, _ := newPassFixture(t, server.URL)

	rec := doOwnerRequest(h.Routes(), http.MethodPost, "/email", map[string]any{
		"eventDetails": "Vibranium 2026",
	}, "owner-1")
	require.Equal(t, http.StatusAccepted, rec.Code)

	msg := <-delivered
	assert.Equal(t, "dana@example.com", msg.UserEmail)
	assert.Equal(t, "Vibranium 2026", msg.EventDetails)
}

func TestEmailPassDisabled(t *testing.T) {
	h, _ := newPassFixture(t, "")

	rec := doOwnerRequest(h.Routes(), http.MethodPost, "/email", nil, "owner-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Queued bool `json:"queued"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Queued)
}
