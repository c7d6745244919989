package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vibranium-fest/pass-server-go/internal/audit"
	apperrors "github.com/vibranium-fest/pass-server-go/internal/errors"
	"github.com/vibranium-fest/pass-server-go/internal/metrics"
	"github.com/vibranium-fest/pass-server-go/internal/model"
	"github.com/vibranium-fest/pass-server-go/internal/qr"
	"github.com/vibranium-fest/pass-server-go/internal/repository"
	"github.com/vibranium-fest/pass-server-go/internal/token"
)

// IssuerService is the only component that creates or refreshes a
// participant credential.
type IssuerService struct {
	profileRepo repository.ProfileRepository
	regRepo     repository.RegistrationRepository
	qrOpts      qr.Options
}

func NewIssuerService(
	profileRepo repository.ProfileRepository,
	regRepo repository.RegistrationRepository,
	qrOpts qr.Options,
) *IssuerService {
	return &IssuerService{
		profileRepo: profileRepo,
		regRepo:     regRepo,
		qrOpts:      qrOpts,
	}
}

// LoadOrIssue returns the persisted credential when both the participant ID
// and the rendered symbol are present, and falls through to Issue otherwise.
// Callers treat the returned credential as possibly stale until they reload.
func (s *IssuerService) LoadOrIssue(ctx context.Context, ownerID string) (*model.Credential, error) {
	profile, err := s.profileRepo.FindByID(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	if profile != nil && hasCredential(profile) {
		return &model.Credential{
			ParticipantID: *profile.ParticipantID,
			OwnerID:       profile.ID,
			Payload:       *profile.QRCode,
			SymbolImage:   *profile.QRCodeData,
			IssuedAt:      *profile.QRCodeGeneratedAt,
		}, nil
	}

	return s.Issue(ctx, ownerID)
}

// Issue mints (or reuses) the participant ID, renders the symbol and
// persists the result. A persistence failure is logged but does not fail
// issuance: the participant keeps their pass even when the cache write
// misses; the next load falls through and persists again.
func (s *IssuerService) Issue(ctx context.Context, ownerID string) (*model.Credential, error) {
	return s.issue(ctx, ownerID, "issue")
}

// Refresh is Issue re-run unconditionally: a new symbol image every time,
// the existing participant ID kept unless none was assigned yet.
func (s *IssuerService) Refresh(ctx context.Context, ownerID string) (*model.Credential, error) {
	return s.issue(ctx, ownerID, "refresh")
}

func (s *IssuerService) issue(ctx context.Context, ownerID, trigger string) (*model.Credential, error) {
	count, err := s.regRepo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if count == 0 {
		return nil, apperrors.NotEligible()
	}

	profile, err := s.profileRepo.FindByID(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if profile == nil {
		return nil, apperrors.NotFound("Profile")
	}

	participantID := ""
	if profile.ParticipantID != nil {
		participantID = *profile.ParticipantID
	}
	if participantID == "" {
		participantID, err = token.MintParticipantID()
		if err != nil {
			return nil, apperrors.Internal("failed to mint participant ID").WithCause(err)
		}
	}

	payload := token.Mint(participantID, ownerID)

	symbolImage, err := qr.Render(payload, s.qrOpts)
	if err != nil {
		log.Error().Err(err).Str("ownerId", ownerID).Msg("symbol rendering failed for a minted token")
		return nil, err
	}

	cred := &model.Credential{
		ParticipantID: participantID,
		OwnerID:       ownerID,
		Payload:       payload,
		SymbolImage:   symbolImage,
		IssuedAt:      time.Now(),
	}

	if _, err := s.profileRepo.UpdateCredential(ctx, ownerID, model.UpdateCredentialParams{
		ParticipantID: cred.ParticipantID,
		QRCode:        cred.Payload,
		QRCodeData:    cred.SymbolImage,
		GeneratedAt:   cred.IssuedAt,
	}); err != nil {
		// Availability of the pass outranks durability of the cache.
		log.Warn().Err(err).Str("ownerId", ownerID).Msg("failed to persist credential, returning in-memory pass")
	}

	metrics.PassesIssued.WithLabelValues(trigger).Inc()
	eventType := audit.EventPassIssued
	if trigger == "refresh" {
		eventType = audit.EventPassRefreshed
	}
	audit.Log(ctx, audit.Event{
		Type:    eventType,
		OwnerID: ownerID,
		Details: map[string]interface{}{"participantId": participantID},
	})

	return cred, nil
}

// IssueMissing renders passes for owners that registered but have no
// credential yet. Replaces the old one-off backfill scripts; failures are
// logged and skipped so one bad row does not stall the batch.
func (s *IssuerService) IssueMissing(ctx context.Context, limit int) (int, error) {
	profiles, err := s.profileRepo.FindMissingCredentials(ctx, limit)
	if err != nil {
		return 0, apperrors.Database(err)
	}

	issued := 0
	for _, profile := range profiles {
		if _, err := s.issue(ctx, profile.ID, "bulk"); err != nil {
			log.Warn().Err(err).Str("ownerId", profile.ID).Msg("bulk issuance skipped owner")
			continue
		}
		issued++
	}

	log.Info().Int("issued", issued).Int("candidates", len(profiles)).Msg("bulk issuance finished")
	return issued, nil
}

func hasCredential(profile *model.Profile) bool {
	return profile.ParticipantID != nil && *profile.ParticipantID != "" &&
		profile.QRCode != nil && *profile.QRCode != "" &&
		profile.QRCodeData != nil && *profile.QRCodeData != "" &&
		profile.QRCodeGeneratedAt != nil
}
