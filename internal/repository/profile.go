package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vibranium-fest/pass-server-go/internal/model"
)

type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*model.Profile, error)
	FindByParticipantID(ctx context.Context, participantID string) (*model.Profile, error)
	// FindMissingCredentials returns owners that hold at least one event
	// registration but have no rendered pass yet.
	FindMissingCredentials(ctx context.Context, limit int) ([]model.Profile, error)
	UpdateCredential(ctx context.Context, id string, params model.UpdateCredentialParams) (*model.Profile, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) ProfileRepository
}

type profileRepo struct {
	db sqlxDB
}

// sqlxDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sqlxDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) WithTx(tx *sqlx.Tx) ProfileRepository {
	return &profileRepo{db: tx}
}

func (r *profileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM profiles WHERE id = $1
	`, id)
	return HandleNotFound(&profile, err)
}

func (r *profileRepo) FindByParticipantID(ctx context.Context, participantID string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM profiles WHERE participant_id = $1
	`, participantID)
	return HandleNotFound(&profile, err)
}

func (r *profileRepo) FindMissingCredentials(ctx context.Context, limit int) ([]model.Profile, error) {
	var profiles []model.Profile
	err := r.db.SelectContext(ctx, &profiles, `
		SELECT p.* FROM profiles p
		WHERE (p.qr_code_data IS NULL OR p.participant_id IS NULL)
		  AND EXISTS (
			SELECT 1 FROM event_registrations r WHERE r.owner_id = p.id
		  )
		ORDER BY p.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepo) UpdateCredential(ctx context.Context, id string, params model.UpdateCredentialParams) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `
		UPDATE profiles SET
			participant_id = $2,
			qr_code = $3,
			qr_code_data = $4,
			qr_code_generated_at = $5,
			updated_at = $6
		WHERE id = $1
		RETURNING *
	`, id, params.ParticipantID, params.QRCode, params.QRCodeData, params.GeneratedAt, time.Now())
	return HandleNotFound(&profile, err)
}
