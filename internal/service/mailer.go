package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vibranium-fest/pass-server-go/internal/audit"
	"github.com/vibranium-fest/pass-server-go/internal/config"
	apperrors "github.com/vibranium-fest/pass-server-go/internal/errors"
	"github.com/vibranium-fest/pass-server-go/internal/metrics"
	"github.com/vibranium-fest/pass-server-go/internal/model"
)

// PassMessage is the payload handed to the external mailer. The mailer owns
// templating; we send it everything the template needs.
type PassMessage struct {
	EventDetails  string `json:"eventDetails"`
	UserName      string `json:"userName"`
	UserEmail     string `json:"userEmail"`
	ParticipantID string `json:"participantId"`
	QRDataURL     string `json:"qrDataUrl"`
}

type mailerResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// MailerService forwards passes to the external mail relay. When no relay
// URL is configured the service is disabled and sends report as skipped
// rather than failing the caller.
type MailerService struct {
	url    string
	client *http.Client
}

func NewMailerService(url string) *MailerService {
	return &MailerService{
		url: url,
		client: &http.Client{
			Timeout: config.MailerTimeout,
		},
	}
}

func (s *MailerService) Enabled() bool {
	return s.url != ""
}

// SendPassEmail delivers one credential to its owner's inbox via the relay.
func (s *MailerService) SendPassEmail(ctx context.Context, owner *model.Profile, cred *model.Credential, eventDetails string) error {
	if !s.Enabled() {
		metrics.PassEmails.WithLabelValues("disabled").Inc()
		log.Debug().Str("ownerId", owner.ID).Msg("mailer disabled, skipping pass email")
		return nil
	}

	body, err := json.Marshal(PassMessage{
		EventDetails:  eventDetails,
		UserName:      owner.Name,
		UserEmail:     owner.Email,
		ParticipantID: cred.ParticipantID,
		QRDataURL:     cred.SymbolImage,
	})
	if err != nil {
		return apperrors.Internal("failed to marshal pass message").WithCause(err)
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return apperrors.Internal("failed to create mailer request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		metrics.PassEmails.WithLabelValues("failed").Inc()
		log.Error().
			Err(err).
			Str("ownerId", owner.ID).
			Dur("elapsed", elapsed).
			Msg("mailer request error")
		return apperrors.External("mailer", err)
	}
	defer resp.Body.Close()

	var result mailerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&result); err != nil {
		result = mailerResponse{}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !result.Success {
		metrics.PassEmails.WithLabelValues("failed").Inc()
		log.Error().
			Str("ownerId", owner.ID).
			Int("status", resp.StatusCode).
			Str("mailerError", result.Error).
			Dur("elapsed", elapsed).
			Msg("mailer rejected pass email")
		return apperrors.External("mailer", fmt.Errorf("mailer responded with status %d", resp.StatusCode))
	}

	metrics.PassEmails.WithLabelValues("sent").Inc()
	audit.Log(ctx, audit.Event{
		Type:    audit.EventPassEmailQueued,
		OwnerID: owner.ID,
		Details: map[string]interface{}{"messageId": result.MessageID},
	})
	log.Info().
		Str("ownerId", owner.ID).
		Str("messageId", result.MessageID).
		Dur("elapsed", elapsed).
		Msg("pass email sent")

	return nil
}

// SendPassEmailAsync fires the delivery off the request path. Failures are
// logged; the participant still has the pass on screen either way.
func (s *MailerService) SendPassEmailAsync(owner *model.Profile, cred *model.Credential, eventDetails string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.MailerTimeout)
		defer cancel()

		if err := s.SendPassEmail(ctx, owner, cred, eventDetails); err != nil {
			log.Warn().Err(err).Str("ownerId", owner.ID).Msg("async pass email failed")
		}
	}()
}
