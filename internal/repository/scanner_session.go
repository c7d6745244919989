package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vibranium-fest/pass-server-go/internal/model"
)

type ScannerSessionRepository interface {
	Create(ctx context.Context, params model.CreateScannerSessionParams) (*model.ScannerSession, error)
	FindByID(ctx context.Context, id string) (*model.ScannerSession, error)
	UpdateState(ctx context.Context, id string, state model.ScannerState) (*model.ScannerSession, error)
	SetCameraError(ctx context.Context, id string, cameraError model.CameraError) (*model.ScannerSession, error)
	DeleteExpired(ctx context.Context) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) ScannerSessionRepository
}

type scannerSessionRepo struct {
	db sqlxDB
}

func NewScannerSessionRepository(db *sqlx.DB) ScannerSessionRepository {
	return &scannerSessionRepo{db: db}
}

func (r *scannerSessionRepo) WithTx(tx *sqlx.Tx) ScannerSessionRepository {
	return &scannerSessionRepo{db: tx}
}

func (r *scannerSessionRepo) Create(ctx context.Context, params model.CreateScannerSessionParams) (*model.ScannerSession, error) {
	var session model.ScannerSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO scanner_sessions (id, staff_id, event_id, zone, state, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, uuid.NewString(), params.StaffID, params.EventID, params.Zone, model.ScannerStateIdle, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *scannerSessionRepo) FindByID(ctx context.Context, id string) (*model.ScannerSession, error) {
	var session model.ScannerSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM scanner_sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *scannerSessionRepo) UpdateState(ctx context.Context, id string, state model.ScannerState) (*model.ScannerSession, error) {
	var session model.ScannerSession
	err := r.db.GetContext(ctx, &session, `
		UPDATE scanner_sessions SET
			state = $2,
			updated_at = $3
		WHERE id = $1
		RETURNING *
	`, id, state, time.Now())
	return HandleNotFound(&session, err)
}

func (r *scannerSessionRepo) SetCameraError(ctx context.Context, id string, cameraError model.CameraError) (*model.ScannerSession, error) {
	var session model.ScannerSession
	err := r.db.GetContext(ctx, &session, `
		UPDATE scanner_sessions SET
			camera_error = $2,
			updated_at = $3
		WHERE id = $1
		RETURNING *
	`, id, cameraError, time.Now())
	return HandleNotFound(&session, err)
}

func (r *scannerSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM scanner_sessions WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
