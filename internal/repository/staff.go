package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vibranium-fest/pass-server-go/internal/model"
)

type StaffRepository interface {
	FindByID(ctx context.Context, id string) (*model.StaffAccount, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.StaffAccount, error)
	Create(ctx context.Context, params model.CreateStaffAccountParams) (*model.StaffAccount, error)
	Disable(ctx context.Context, id string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) StaffRepository
}

type staffRepo struct {
	db sqlxDB
}

func NewStaffRepository(db *sqlx.DB) StaffRepository {
	return &staffRepo{db: db}
}

func (r *staffRepo) WithTx(tx *sqlx.Tx) StaffRepository {
	return &staffRepo{db: tx}
}

func (r *staffRepo) FindByID(ctx context.Context, id string) (*model.StaffAccount, error) {
	var staff model.StaffAccount
	err := r.db.GetContext(ctx, &staff, `
		SELECT * FROM staff_accounts WHERE id = $1
	`, id)
	return HandleNotFound(&staff, err)
}

func (r *staffRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.StaffAccount, error) {
	var staff model.StaffAccount
	err := r.db.GetContext(ctx, &staff, `
		SELECT * FROM staff_accounts
		WHERE token_hash = $1 AND disabled_at IS NULL
	`, tokenHash)
	return HandleNotFound(&staff, err)
}

func (r *staffRepo) Create(ctx context.Context, params model.CreateStaffAccountParams) (*model.StaffAccount, error) {
	var staff model.StaffAccount
	err := r.db.GetContext(ctx, &staff, `
		INSERT INTO staff_accounts (id, name, role, token_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, uuid.NewString(), params.Name, params.Role, params.TokenHash)
	if err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *staffRepo) Disable(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE staff_accounts SET disabled_at = NOW() WHERE id = $1
	`, id)
	return err
}
