package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vibranium-fest/pass-server-go/internal/database"
	"github.com/vibranium-fest/pass-server-go/internal/model"
	"github.com/vibranium-fest/pass-server-go/internal/repository"
)

// passthroughTx runs the function without a real transaction; the fakes
// below ignore the tx handle anyway.
type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type fakeProfileRepo struct {
	profiles  map[string]*model.Profile
	updateErr error
	updates   []model.UpdateCredentialParams
}

func newFakeProfileRepo(profiles ...*model.Profile) *fakeProfileRepo {
	r := &fakeProfileRepo{profiles: make(map[string]*model.Profile)}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

func (r *fakeProfileRepo) FindByID(_ context.Context, id string) (*model.Profile, error) {
	return r.profiles[id], nil
}

func (r *fakeProfileRepo) FindByParticipantID(_ context.Context, participantID string) (*model.Profile, error) {
	for _, p := range r.profiles {
		if p.ParticipantID != nil && *p.ParticipantID == participantID {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakeProfileRepo) FindMissingCredentials(_ context.Context, limit int) ([]model.Profile, error) {
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

func (r *fakeProfileRepo) UpdateCredential(_ context.Context, id string, params model.UpdateCredentialParams) (*model.Profile, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	r.updates = append(r.updates, params)
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

func (r *fakeProfileRepo) WithTx(_ *sqlx.Tx) repository.ProfileRepository { return r }

type fakeRegRepo struct {
	regs map[string]*model.EventRegistration
}

func regKey(eventID, ownerID string) string {
	return eventID + "|" + ownerID
}

func newFakeRegRepo(regs ...*model.EventRegistration) *fakeRegRepo {
	r := &fakeRegRepo{regs: make(map[string]*model.EventRegistration)}
	for _, reg := range regs {
		r.regs[regKey(reg.EventID, reg.OwnerID)] = reg
	}
	return r
}

func (r *fakeRegRepo) Find(_ context.Context, eventID, ownerID string) (*model.EventRegistration, error) {
	return r.regs[regKey(eventID, ownerID)], nil
}

func (r *fakeRegRepo) FindByOwner(_ context.Context, ownerID string) ([]model.EventRegistration, error) {
	var regs []model.EventRegistration
	for _, reg := range r.regs {
		if reg.OwnerID == ownerID {
			regs = append(regs, *reg)
		}
	}
	return regs, nil
}

func (r *fakeRegRepo) CountByOwner(_ context.Context, ownerID string) (int, error) {
	count := 0
	for _, reg := range r.regs {
		if reg.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (r *fakeRegRepo) CheckIn(_ context.Context, eventID, ownerID string, at time.Time) (bool, error) {
	reg := r.regs[regKey(eventID, ownerID)]
	if reg == nil || reg.CheckedIn {
		return false, nil
	}
	reg.CheckedIn = true
	reg.CheckInTime = &at
	return true, nil
}

func (r *fakeRegRepo) ResetCheckIn(_ context.Context, eventID, ownerID string) error {
	if reg := r.regs[regKey(eventID, ownerID)]; reg != nil {
		reg.CheckedIn = false
		reg.CheckInTime = nil
	}
	return nil
}

func (r *fakeRegRepo) WithTx(_ *sqlx.Tx) repository.RegistrationRepository { return r }

type fakeAuditRepo struct {
	created   []model.CreateCheckinAuditParams
	createErr error
}

func (r *fakeAuditRepo) Create(_ context.Context, params model.CreateCheckinAuditParams) (*model.CheckinAudit, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.created = append(r.created, params)
	return &model.CheckinAudit{
		ID:          fmt.Sprintf("audit-%d", len(r.created)),
		EventID:     params.EventID,
		OwnerID:     params.OwnerID,
		TokenUsed:   params.TokenUsed,
		Zone:        params.Zone,
		Notes:       params.Notes,
		CheckInTime: params.CheckInTime,
	}, nil
}

func (r *fakeAuditRepo) FindByEvent(_ context.Context, eventID string, limit, offset int) ([]model.CheckinAudit, error) {
	return nil, nil
}

func (r *fakeAuditRepo) CountByEvent(_ context.Context, eventID string) (int, error) {
	count := 0
	for _, a := range r.created {
		if a.EventID == eventID {
			count++
		}
	}
	return count, nil
}

func (r *fakeAuditRepo) DeleteLatest(_ context.Context, eventID, ownerID string) (int64, error) {
	for i := len(r.created) - 1; i >= 0; i-- {
		if r.created[i].EventID == eventID && r.created[i].OwnerID == ownerID {
			r.created = append(r.created[:i], r.created[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeAuditRepo) WithTx(_ *sqlx.Tx) repository.CheckinAuditRepository { return r }

type fakeSessionRepo struct {
	sessions map[string]*model.ScannerSession
	nextID   int

	// sweepOnCameraError drops the row when SetCameraError runs, the way
	// the cleanup job can between a liveness check and the update.
	sweepOnCameraError bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.ScannerSession)}
}

func (r *fakeSessionRepo) Create(_ context.Context, params model.CreateScannerSessionParams) (*model.ScannerSession, error) {
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

func (r *fakeSessionRepo) FindByID(_ context.Context, id string) (*model.ScannerSession, error) {
	return r.sessions[id], nil
}

func (r *fakeSessionRepo) UpdateState(_ context.Context, id string, state model.ScannerState) (*model.ScannerSession, error) {
	session := r.sessions[id]
	if session == nil {
		return nil, nil
	}
	session.State = state
	session.UpdatedAt = time.Now()
	return session, nil
}

func (r *fakeSessionRepo) SetCameraError(_ context.Context, id string, cameraError model.CameraError) (*model.ScannerSession, error) {
	if r.sweepOnCameraError {
		delete(r.sessions, id)
	}
	session := r.sessions[id]
	if session == nil {
		return nil, nil
	}
	session.CameraError = &cameraError
	session.UpdatedAt = time.Now()
	return session, nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	var deleted int64
	for id, session := range r.sessions {
		if time.Now().After(session.ExpiresAt) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeSessionRepo) WithTx(_ *sqlx.Tx) repository.ScannerSessionRepository { return r }

type fakeDeduper struct {
	seen map[string]bool
	err  error
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]bool)}
}

func (d *fakeDeduper) AcquireOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

type redeemCall struct {
	candidate string
	eventID   string
	opts      RedeemOptions
}

type fakeRedeemer struct {
	result *model.RedemptionResult
	err    error
	calls  []redeemCall
}

func (r *fakeRedeemer) Redeem(_ context.Context, candidate, eventID string, opts RedeemOptions) (*model.RedemptionResult, error) {
	r.calls = append(r.calls, redeemCall{candidate: candidate, eventID: eventID, opts: opts})
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func strPtr(s string) *string { return &s }
