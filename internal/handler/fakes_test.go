package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vibranium-fest/pass-server-go/internal/database"
	"github.com/vibranium-fest/pass-server-go/internal/model"
	"github.com/vibranium-fest/pass-server-go/internal/repository"
)

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type memProfileRepo struct {
	profiles map[string]*model.Profile
}

func newMemProfileRepo(profiles ...*model.Profile) *memProfileRepo {
	r := &memProfileRepo{profiles: make(map[string]*model.Profile)}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

func (r *memProfileRepo) FindByID(_ context.Context, id string) (*model.Profile, error) {
	return r.profiles[id], nil
}

func (r *memProfileRepo) FindByParticipantID(_ context.Context, participantID string) (*model.Profile, error) {
	for _, p := range r.profiles {
		if p.ParticipantID != nil && *p.ParticipantID == participantID {
			return p, nil
		}
	}
	return nil, nil
}

func (r *memProfileRepo) FindMissingCredentials(_ context.Context, limit int) ([]model.Profile, error) {
	var missing []model.Profile
	for _, p := range r.profiles {
		if p.ParticipantID == nil || p.QRCodeData == nil {
			missing = append(missing, *p)
		}
		if len(missing) == limit {
			break
		}
	}
	return missing, nil
}

func (r *memProfileRepo) UpdateCredential(_ context.Context, id string, params model.UpdateCredentialParams) (*model.Profile, error) {
	p := r.profiles[id]
	if p == nil {
		return nil, nil
	}
	p.ParticipantID = &params.ParticipantID
	p.QRCode = &params.QRCode
	p.QRCodeData = &params.QRCodeData
	p.QRCodeGeneratedAt = &params.GeneratedAt
	return p, nil
}

func (r *memProfileRepo) WithTx(_ *sqlx.Tx) repository.ProfileRepository { return r }

type memRegRepo struct {
	regs map[string]*model.EventRegistration
}

func memRegKey(eventID, ownerID string) string {
	return eventID + "|" + ownerID
}

func newMemRegRepo(regs ...*model.EventRegistration) *memRegRepo {
	r := &memRegRepo{regs: make(map[string]*model.EventRegistration)}
	for _, reg := range regs {
		r.regs[memRegKey(reg.EventID, reg.OwnerID)] = reg
	}
	return r
}

func (r *memRegRepo) Find(_ context.Context, eventID, ownerID string) (*model.EventRegistration, error) {
	return r.regs[memRegKey(eventID, ownerID)], nil
}

func (r *memRegRepo) FindByOwner(_ context.Context, ownerID string) ([]model.EventRegistration, error) {
	var regs []model.EventRegistration
	for _, reg := range r.regs {
		if reg.OwnerID == ownerID {
			regs = append(regs, *reg)
		}
	}
	return regs, nil
}

func (r *memRegRepo) CountByOwner(_ context.Context, ownerID string) (int, error) {
	count := 0
	for _, reg := range r.regs {
		if reg.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (r *memRegRepo) CheckIn(_ context.Context, eventID, ownerID string, at time.Time) (bool, error) {
	reg := r.regs[memRegKey(eventID, ownerID)]
	if reg == nil || reg.CheckedIn {
		return false, nil
	}
	reg.CheckedIn = true
	reg.CheckInTime = &at
	return true, nil
}

func (r *memRegRepo) ResetCheckIn(_ context.Context, eventID, ownerID string) error {
	if reg := r.regs[memRegKey(eventID, ownerID)]; reg != nil {
		reg.CheckedIn = false
		reg.CheckInTime = nil
	}
	return nil
}

func (r *memRegRepo) WithTx(_ *sqlx.Tx) repository.RegistrationRepository { return r }

type memAuditRepo struct {
	rows []model.CheckinAudit
}

func (r *memAuditRepo) Create(_ context.Context, params model.CreateCheckinAuditParams) (*model.CheckinAudit, error) {
	row := model.CheckinAudit{
		ID:          fmt.Sprintf("audit-%d", len(r.rows)+1),
		EventID:     params.EventID,
		OwnerID:     params.OwnerID,
		TokenUsed:   params.TokenUsed,
		Zone:        params.Zone,
		Notes:       params.Notes,
		CheckInTime: params.CheckInTime,
	}
	r.rows = append(r.rows, row)
	return &row, nil
}

func (r *memAuditRepo) FindByEvent(_ context.Context, eventID string, limit, offset int) ([]model.CheckinAudit, error) {
	var rows []model.CheckinAudit
	for _, row := range r.rows {
		if row.EventID == eventID {
			rows = append(rows, row)
		}
	}
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *memAuditRepo) CountByEvent(_ context.Context, eventID string) (int, error) {
	count := 0
	for _, row := range r.rows {
		if row.EventID == eventID {
			count++
		}
	}
	return count, nil
}

func (r *memAuditRepo) DeleteLatest(_ context.Context, eventID, ownerID string) (int64, error) {
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].EventID == eventID && r.rows[i].OwnerID == ownerID {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *memAuditRepo) WithTx(_ *sqlx.Tx) repository.CheckinAuditRepository { return r }

type memSessionRepo struct {
	sessions map[string]*model.ScannerSession
	nextID   int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.ScannerSession)}
}

func (r *memSessionRepo) Create(_ context.Context, params model.CreateScannerSessionParams) (*model.ScannerSession, error) {
	r.nextID++
	session := &model.ScannerSession{
		ID:        fmt.Sprintf("sess-%d", r.nextID),
		StaffID:   params.StaffID,
		EventID:   params.EventID,
		Zone:      params.Zone,
		State:     model.ScannerStateIdle,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		ExpiresAt: params.ExpiresAt,
	}
	r.sessions[session.ID] = session
	return session, nil
}

func (r *memSessionRepo) FindByID(_ context.Context, id string) (*model.ScannerSession, error) {
	return r.sessions[id], nil
}

func (r *memSessionRepo) UpdateState(_ context.Context, id string, state model.ScannerState) (*model.ScannerSession, error) {
	session := r.sessions[id]
	if session == nil {
		return nil, nil
	}
	session.State = state
	return session, nil
}

func (r *memSessionRepo) SetCameraError(_ context.Context, id string, cameraError model.CameraError) (*model.ScannerSession, error) {
	session := r.sessions[id]
	if session == nil {
		return nil, nil
	}
	session.CameraError = &cameraError
	return session, nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

func (r *memSessionRepo) WithTx(_ *sqlx.Tx) repository.ScannerSessionRepository { return r }

type memDeduper struct {
	seen map[string]bool
}

func newMemDeduper() *memDeduper {
	return &memDeduper{seen: make(map[string]bool)}
}

func (d *memDeduper) AcquireOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func strPtr(s string) *string { return &s }
