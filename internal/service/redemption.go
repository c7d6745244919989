package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/vibranium-fest/pass-server-go/internal/audit"
	"github.com/vibranium-fest/pass-server-go/internal/database"
	apperrors "github.com/vibranium-fest/pass-server-go/internal/errors"
	"github.com/vibranium-fest/pass-server-go/internal/metrics"
	"github.com/vibranium-fest/pass-server-go/internal/model"
	"github.com/vibranium-fest/pass-server-go/internal/repository"
	"github.com/vibranium-fest/pass-server-go/internal/sse"
	"github.com/vibranium-fest/pass-server-go/internal/token"
	"github.com/vibranium-fest/pass-server-go/internal/util"
)

// TxRunner runs a function inside a database transaction. *database.DB
// satisfies it; tests substitute a pass-through.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// RedeemOptions carry operator context for the audit trail.
type RedeemOptions struct {
	Zone    *string
	Notes   *string
	StaffID string
}

// RedemptionService is the single authority turning a scanned token into a
// check-in. The checked_in flip and the audit insert happen in one
// transaction, and the flip itself is conditional, so concurrent scans of
// the same (event, owner) pair produce exactly one fresh check-in.
type RedemptionService struct {
	tx          TxRunner
	profileRepo repository.ProfileRepository
	regRepo     repository.RegistrationRepository
	auditRepo   repository.CheckinAuditRepository
	broker      *sse.Broker
}

func NewRedemptionService(
	tx TxRunner,
	profileRepo repository.ProfileRepository,
	regRepo repository.RegistrationRepository,
	auditRepo repository.CheckinAuditRepository,
	broker *sse.Broker,
) *RedemptionService {
	return &RedemptionService{
		tx:          tx,
		profileRepo: profileRepo,
		regRepo:     regRepo,
		auditRepo:   auditRepo,
		broker:      broker,
	}
}

func (s *RedemptionService) Redeem(ctx context.Context, candidate, eventID string, opts RedeemOptions) (*model.RedemptionResult, error) {
	if eventID == "" {
		return nil, apperrors.MissingRequired("eventId")
	}

	profile, err := s.resolveOwner(ctx, candidate)
	if err != nil {
		s.recordFailure(ctx, err, candidate, eventID, opts)
		return nil, err
	}

	now := time.Now()
	var result *model.RedemptionResult

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		regRepo := s.regRepo
		auditRepo := s.auditRepo
		if tx != nil {
			regRepo = regRepo.WithTx(tx)
			auditRepo = auditRepo.WithTx(tx)
		}

		checkedIn, err := regRepo.CheckIn(ctx, eventID, profile.ID, now)
		if err != nil {
			return apperrors.Database(err)
		}

		if !checkedIn {
			// The conditional update matched nothing: either no
			// registration row exists, or it was already flipped.
			reg, err := regRepo.Find(ctx, eventID, profile.ID)
			if err != nil {
				return apperrors.Database(err)
			}
			if reg == nil {
				return apperrors.NotRegisteredForEvent()
			}
			return apperrors.AlreadyCheckedIn()
		}

		if _, err := auditRepo.Create(ctx, model.CreateCheckinAuditParams{
			EventID:     eventID,
			OwnerID:     profile.ID,
			TokenUsed:   candidate,
			Zone:        opts.Zone,
			Notes:       opts.Notes,
			CheckInTime: now,
		}); err != nil {
			return apperrors.Database(err)
		}

		participantID := ""
		if profile.ParticipantID != nil {
			participantID = *profile.ParticipantID
		}
		result = &model.RedemptionResult{
			OwnerID:       profile.ID,
			Name:          profile.Name,
			Email:         profile.Email,
			ParticipantID: participantID,
			EventID:       eventID,
			CheckInTime:   now,
		}
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, err, candidate, eventID, opts)
		return nil, err
	}

	metrics.Redemptions.WithLabelValues(metrics.OutcomeSuccess).Inc()
	audit.Log(ctx, audit.Event{
		Type:    audit.EventCheckinSuccess,
		OwnerID: profile.ID,
		StaffID: opts.StaffID,
		EventID: eventID,
		Details: map[string]interface{}{"token": util.MaskToken(candidate)},
	})
	s.publish(ctx, eventID, "checkin", result)

	return result, nil
}

// Undo is the staff correction path: it removes the latest audit row for
// the pair and resets the registration. Administrative override, not part
// of the normal redemption machine; the handler enforces confirmation.
func (s *RedemptionService) Undo(ctx context.Context, eventID, ownerID, staffID string) error {
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		regRepo := s.regRepo
		auditRepo := s.auditRepo
		if tx != nil {
			regRepo = regRepo.WithTx(tx)
			auditRepo = auditRepo.WithTx(tx)
		}

		deleted, err := auditRepo.DeleteLatest(ctx, eventID, ownerID)
		if err != nil {
			return apperrors.Database(err)
		}
		if deleted == 0 {
			return apperrors.NotFound("Check-in")
		}

		if err := regRepo.ResetCheckIn(ctx, eventID, ownerID); err != nil {
			return apperrors.Database(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventCheckinUndo,
		OwnerID: ownerID,
		StaffID: staffID,
		EventID: eventID,
	})
	s.publish(ctx, eventID, "checkin_undo", map[string]string{"ownerId": ownerID})

	return nil
}

// resolveOwner maps a scanned payload to a profile: legacy JSON payloads
// carry the owner directly, plain tokens resolve by exact participant-ID
// match only.
func (s *RedemptionService) resolveOwner(ctx context.Context, candidate string) (*model.Profile, error) {
	decoded := token.Decode(candidate)

	switch decoded.Kind {
	case token.KindLegacy:
		profile, err := s.profileRepo.FindByID(ctx, decoded.Legacy.OwnerID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if profile == nil {
			return nil, apperrors.OwnerNotFound()
		}
		return profile, nil

	case token.KindPlain:
		// Prefixed legacy tokens carry the owner UUID directly.
		if ownerID, ok := token.CutLegacyPrefix(decoded.Token); ok {
			profile, err := s.profileRepo.FindByID(ctx, ownerID)
			if err != nil {
				return nil, apperrors.Database(err)
			}
			if profile == nil {
				return nil, apperrors.OwnerNotFound()
			}
			return profile, nil
		}

		profile, err := s.profileRepo.FindByParticipantID(ctx, decoded.Token)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if profile == nil {
			// Bare owner UUIDs were an even older scheme.
			profile, err = s.profileRepo.FindByID(ctx, decoded.Token)
			if err != nil {
				return nil, apperrors.Database(err)
			}
		}
		if profile == nil {
			return nil, apperrors.UnknownCredential()
		}
		return profile, nil

	default:
		return nil, apperrors.UnknownCredential()
	}
}

func (s *RedemptionService) recordFailure(ctx context.Context, err error, candidate, eventID string, opts RedeemOptions) {
	outcome := metrics.OutcomeError
	eventType := audit.EventCheckinRejected

	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeUnknownCredential:
		outcome = metrics.OutcomeUnknownCredential
	case apperrors.ErrCodeOwnerNotFound:
		outcome = metrics.OutcomeOwnerNotFound
	case apperrors.ErrCodeNotRegisteredForEvent:
		outcome = metrics.OutcomeNotRegistered
	case apperrors.ErrCodeAlreadyCheckedIn:
		outcome = metrics.OutcomeDuplicate
		eventType = audit.EventCheckinDuplicate
	default:
		// Persistence failures during redemption must propagate loudly:
		// a check-in that silently fails to persist is worse than one
		// that visibly errors.
		log.Error().Err(err).Str("eventId", eventID).Msg("redemption failed")
	}

	metrics.Redemptions.WithLabelValues(outcome).Inc()
	audit.Log(ctx, audit.Event{
		Type:    eventType,
		StaffID: opts.StaffID,
		EventID: eventID,
		Details: map[string]interface{}{
			"token": util.MaskToken(candidate),
			"code":  string(apperrors.GetCode(err)),
		},
	})
}

func (s *RedemptionService) publish(ctx context.Context, eventID, eventType string, payload any) {
	if s.broker == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.broker.Publish(ctx, eventID, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Warn().Err(err).Str("eventId", eventID).Msg("failed to publish checkin event")
	}
}
