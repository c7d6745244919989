package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vibranium-fest/pass-server-go/internal/audit"
	apperrors "github.com/vibranium-fest/pass-server-go/internal/errors"
	"github.com/vibranium-fest/pass-server-go/internal/metrics"
	"github.com/vibranium-fest/pass-server-go/internal/model"
	redisclient "github.com/vibranium-fest/pass-server-go/internal/redis"
	"github.com/vibranium-fest/pass-server-go/internal/repository"
	"github.com/vibranium-fest/pass-server-go/internal/util"
)

// Deduper claims a key for a window; only the first claim succeeds.
// *redisclient.Client satisfies it.
type Deduper interface {
	AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Redeemer is the slice of RedemptionService the intake path needs.
type Redeemer interface {
	Redeem(ctx context.Context, candidate, eventID string, opts RedeemOptions) (*model.RedemptionResult, error)
}

// IntakeService owns scanner sessions and funnels their decodes into the
// redemption engine. A session pauses after every accepted decode so the
// operator confirms each result before the next scan; identical payloads
// inside the dedupe window are suppressed before they reach redemption.
type IntakeService struct {
	sessions repository.ScannerSessionRepository
	deduper  Deduper
	redeemer Redeemer
	window   time.Duration
	ttl      time.Duration
}

func NewIntakeService(
	sessions repository.ScannerSessionRepository,
	deduper Deduper,
	redeemer Redeemer,
	window time.Duration,
	sessionTTL time.Duration,
) *IntakeService {
	return &IntakeService{
		sessions: sessions,
		deduper:  deduper,
		redeemer: redeemer,
		window:   window,
		ttl:      sessionTTL,
	}
}

func (s *IntakeService) CreateSession(ctx context.Context, staffID, eventID string, zone *string) (*model.ScannerSession, error) {
	if eventID == "" {
		return nil, apperrors.MissingRequired("eventId")
	}

	session, err := s.sessions.Create(ctx, model.CreateScannerSessionParams{
		StaffID:   staffID,
		EventID:   eventID,
		Zone:      zone,
		ExpiresAt: time.Now().Add(s.ttl),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("eventId", eventID).
		Str("staffId", staffID).
		Msg("scanner session created")

	return session, nil
}

func (s *IntakeService) GetSession(ctx context.Context, id string) (*model.ScannerSession, error) {
	return s.liveSession(ctx, id)
}

// Start moves an idle or paused session to scanning.
func (s *IntakeService) Start(ctx context.Context, id string) (*model.ScannerSession, error) {
	return s.transition(ctx, id, model.ScannerStateScanning)
}

// Pause is idempotent: pausing a paused session is a no-op, pausing an
// idle session stays idle.
func (s *IntakeService) Pause(ctx context.Context, id string) (*model.ScannerSession, error) {
	session, err := s.liveSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != model.ScannerStateScanning {
		return session, nil
	}
	return s.updateState(ctx, id, model.ScannerStatePaused)
}

// Resume returns a paused session to scanning. Resuming a session that is
// not paused is a validation error so operator UIs surface state drift.
func (s *IntakeService) Resume(ctx context.Context, id string) (*model.ScannerSession, error) {
	session, err := s.liveSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State == model.ScannerStateScanning {
		return session, nil
	}
	if session.State != model.ScannerStatePaused {
		return nil, apperrors.ValidationError("session is not paused")
	}
	return s.updateState(ctx, id, model.ScannerStateScanning)
}

func (s *IntakeService) Stop(ctx context.Context, id string) (*model.ScannerSession, error) {
	return s.transition(ctx, id, model.ScannerStateIdle)
}

// ReportCameraError records an acquisition failure classified by the
// operator client and forces the session out of scanning: a session whose
// camera is gone cannot be scanning.
func (s *IntakeService) ReportCameraError(ctx context.Context, id string, cameraError model.CameraError) (*model.ScannerSession, error) {
	if !cameraError.Valid() {
		return nil, apperrors.ValidationError("unknown camera error kind")
	}

	if _, err := s.liveSession(ctx, id); err != nil {
		return nil, err
	}

	session, err := s.sessions.SetCameraError(ctx, id, cameraError)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		// The cleanup job can sweep an expiring session between the
		// liveness check and this update.
		return nil, apperrors.NotFound("Scanner session")
	}
	if session.State == model.ScannerStateScanning {
		session, err = s.updateState(ctx, id, model.ScannerStateIdle)
		if err != nil {
			return nil, err
		}
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventCameraFailure,
		StaffID: session.StaffID,
		EventID: session.EventID,
		Details: map[string]interface{}{"kind": string(cameraError)},
	})

	return session, nil
}

// Submit processes one decoded payload from a scanning session: suppress
// duplicates inside the window, pause the session, then redeem. The pause
// lands before redemption so the operator sees exactly one outcome per
// decode even when redemption itself fails.
func (s *IntakeService) Submit(ctx context.Context, sessionID, candidate string) (*model.RedemptionResult, error) {
	session, err := s.liveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State != model.ScannerStateScanning {
		return nil, apperrors.ScannerNotScanning()
	}

	key := redisclient.ScanDedupeKey(sessionID, util.HashToken(candidate))
	first, err := s.deduper.AcquireOnce(ctx, key, s.window)
	if err != nil {
		// Fail open: a redis hiccup must not block the check-in line.
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("scan dedupe unavailable, letting scan through")
		first = true
	}
	if !first {
		metrics.ScansSuppressed.Inc()
		audit.Log(ctx, audit.Event{
			Type:    audit.EventScanSuppressed,
			StaffID: session.StaffID,
			EventID: session.EventID,
			Details: map[string]interface{}{"token": util.MaskToken(candidate)},
		})
		return nil, apperrors.DuplicateScan()
	}

	if _, err := s.updateState(ctx, sessionID, model.ScannerStatePaused); err != nil {
		return nil, err
	}

	return s.redeemer.Redeem(ctx, candidate, session.EventID, RedeemOptions{
		Zone:    session.Zone,
		StaffID: session.StaffID,
	})
}

// SubmitManual is the typed-entry fallback. No session state machine and
// no dedupe window apply: the operator deliberately keyed the value in.
func (s *IntakeService) SubmitManual(ctx context.Context, candidate, eventID, staffID string, zone, notes *string) (*model.RedemptionResult, error) {
	return s.redeemer.Redeem(ctx, candidate, eventID, RedeemOptions{
		Zone:    zone,
		Notes:   notes,
		StaffID: staffID,
	})
}

func (s *IntakeService) transition(ctx context.Context, id string, state model.ScannerState) (*model.ScannerSession, error) {
	if _, err := s.liveSession(ctx, id); err != nil {
		return nil, err
	}
	return s.updateState(ctx, id, state)
}

func (s *IntakeService) updateState(ctx context.Context, id string, state model.ScannerState) (*model.ScannerSession, error) {
	session, err := s.sessions.UpdateState(ctx, id, state)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Scanner session")
	}
	return session, nil
}

// liveSession loads the session and treats an expired one the same as a
// missing one. Expired rows linger until the cleanup job sweeps them.
func (s *IntakeService) liveSession(ctx context.Context, id string) (*model.ScannerSession, error) {
	if id == "" {
		return nil, apperrors.MissingRequired("sessionId")
	}
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || time.Now().After(session.ExpiresAt) {
		return nil, apperrors.NotFound("Scanner session")
	}
	return session, nil
}
