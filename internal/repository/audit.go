package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vibranium-fest/pass-server-go/internal/model"
)

// CheckinAuditRepository is append-only; DeleteLatest exists solely for the
// explicit staff undo.
type CheckinAuditRepository interface {
	Create(ctx context.Context, params model.CreateCheckinAuditParams) (*model.CheckinAudit, error)
	FindByEvent(ctx context.Context, eventID string, limit, offset int) ([]model.CheckinAudit, error)
	CountByEvent(ctx context.Context, eventID string) (int, error)
	DeleteLatest(ctx context.Context, eventID, ownerID string) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) CheckinAuditRepository
}

type checkinAuditRepo struct {
	db sqlxDB
}

func NewCheckinAuditRepository(db *sqlx.DB) CheckinAuditRepository {
	return &checkinAuditRepo{db: db}
}

func (r *checkinAuditRepo) WithTx(tx *sqlx.Tx) CheckinAuditRepository {
	return &checkinAuditRepo{db: tx}
}

func (r *checkinAuditRepo) Create(ctx context.Context, params model.CreateCheckinAuditParams) (*model.CheckinAudit, error) {
	var audit model.CheckinAudit
	err := r.db.GetContext(ctx, &audit, `
		INSERT INTO checkin_audit (id, event_id, owner_id, token_used, zone, notes, check_in_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, uuid.NewString(), params.EventID, params.OwnerID, params.TokenUsed, params.Zone, params.Notes, params.CheckInTime)
	if err != nil {
		return nil, err
	}
	return &audit, nil
}

func (r *checkinAuditRepo) FindByEvent(ctx context.Context, eventID string, limit, offset int) ([]model.CheckinAudit, error) {
	var audits []model.CheckinAudit
	err := r.db.SelectContext(ctx, &audits, `
		SELECT * FROM checkin_audit
		WHERE event_id = $1
		ORDER BY check_in_time DESC
		LIMIT $2 OFFSET $3
	`, eventID, limit, offset)
	if err != nil {
		return nil, err
	}
	return audits, nil
}

func (r *checkinAuditRepo) CountByEvent(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM checkin_audit WHERE event_id = $1
	`, eventID)
	return count, err
}

func (r *checkinAuditRepo) DeleteLatest(ctx context.Context, eventID, ownerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM checkin_audit
		WHERE id = (
			SELECT id FROM checkin_audit
			WHERE event_id = $1 AND owner_id = $2
			ORDER BY check_in_time DESC
			LIMIT 1
		)
	`, eventID, ownerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
