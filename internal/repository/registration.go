package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vibranium-fest/pass-server-go/internal/model"
)

type RegistrationRepository interface {
	Find(ctx context.Context, eventID, ownerID string) (*model.EventRegistration, error)
	FindByOwner(ctx context.Context, ownerID string) ([]model.EventRegistration, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	// CheckIn flips checked_in exactly once. The condition is part of the
	// UPDATE so two concurrent redemptions of the same pair cannot both
	// succeed; returns false when the row was already checked in.
	CheckIn(ctx context.Context, eventID, ownerID string, at time.Time) (bool, error)
	// ResetCheckIn is the staff undo path.
	ResetCheckIn(ctx context.Context, eventID, ownerID string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) RegistrationRepository
}

type registrationRepo struct {
	db sqlxDB
}

func NewRegistrationRepository(db *sqlx.DB) RegistrationRepository {
	return &registrationRepo{db: db}
}

func (r *registrationRepo) WithTx(tx *sqlx.Tx) RegistrationRepository {
	return &registrationRepo{db: tx}
}

func (r *registrationRepo) Find(ctx context.Context, eventID, ownerID string) (*model.EventRegistration, error) {
	var reg model.EventRegistration
	err := r.db.GetContext(ctx, &reg, `
		SELECT * FROM event_registrations
		WHERE event_id = $1 AND owner_id = $2
	`, eventID, ownerID)
	return HandleNotFound(&reg, err)
}

func (r *registrationRepo) FindByOwner(ctx context.Context, ownerID string) ([]model.EventRegistration, error) {
	var regs []model.EventRegistration
	err := r.db.SelectContext(ctx, &regs, `
		SELECT * FROM event_registrations
		WHERE owner_id = $1
		ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *registrationRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM event_registrations WHERE owner_id = $1
	`, ownerID)
	return count, err
}

func (r *registrationRepo) CheckIn(ctx context.Context, eventID, ownerID string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE event_registrations SET
			checked_in = TRUE,
			check_in_time = $3
		WHERE event_id = $1 AND owner_id = $2 AND checked_in = FALSE
	`, eventID, ownerID, at)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *registrationRepo) ResetCheckIn(ctx context.Context, eventID, ownerID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE event_registrations SET
			checked_in = FALSE,
			check_in_time = NULL
		WHERE event_id = $1 AND owner_id = $2
	`, eventID, ownerID)
	return err
}
