package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vibranium-fest/pass-server-go/internal/errors"
	"github.com/vibranium-fest/pass-server-go/internal/model"
)

func newRedemptionFixture() (*RedemptionService, *fakeProfileRepo, *fakeRegRepo, *fakeAuditRepo) {
	profiles := newFakeProfileRepo(&model.Profile{
		ID:            "owner-1",
		Email:         "dana@example.com",
		Name:          "Dana Park",
		ParticipantID: strPtr("VIBABCD1234"),
	})
	regs := newFakeRegRepo(&model.EventRegistration{
		EventID: "evt-hack",
		OwnerID: "owner-1",
		Status:  model.RegistrationStatusApproved,
	})
	audits := &fakeAuditRepo{}
	svc := NewRedemptionService(passthroughTx{}, profiles, regs, audits, nil)
	return svc, profiles, regs, audits
}

func TestRedeemPlainToken(t *testing.T) {
	svc, _, regs, audits := newRedemptionFixture()

	result, err := svc.Redeem(context.Background(), "VIBABCD1234", "evt-hack", RedeemOptions{StaffID: "staff-1"})
	require.NoError(t, err)

	assert.Equal(t, "owner-1", result.OwnerID)
	assert.Equal(t, "Dana Park", result.Name)
	assert.Equal(t, "VIBABCD1234", result.ParticipantID)
	assert.False(t, result.CheckInTime.IsZero())

	reg := regs.regs[regKey("evt-hack", "owner-1")]
	assert.True(t, reg.CheckedIn)

	require.Len(t, audits.created, 1)
	assert.Equal(t, "VIBABCD1234", audits.created[0].TokenUsed)
}

func TestRedeemLegacyPayload(t *testing.T) {
	svc, _, _, audits := newRedemptionFixture()

	payload, err := json.Marshal(map[string]string{
		"userId": "owner-1",
		"email":  "dana@example.com",
		"name":   "Dana Park",
	})
	require.NoError(t, err)

	result, err := svc.Redeem(context.Background(), string(payload), "evt-hack", RedeemOptions{})
	require.NoError(t, err)
	assert.Equal(t, "owner-1", result.OwnerID)
	assert.Len(t, audits.created, 1)
}

func TestRedeemSecondScanIsDuplicate(t *testing.T) {
	svc, _, _, audits := newRedemptionFixture()

	_, err := svc.Redeem(context.Background(), "VIBABCD1234", "evt-hack", RedeemOptions{})
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), "VIBABCD1234", "evt-hack", RedeemOptions{})
	assert.Equal(t, apperrors.ErrCodeAlreadyCheckedIn, apperrors.GetCode(err))

	// The failed attempt must not add an audit row.
	assert.Len(t, audits.created, 1)
}

func TestRedeemUnknownCredential(t *testing.T) {
	svc, _, _, _ := newRedemptionFixture()

	_, err := svc.Redeem(context.Background(), "VIBNOBODY99", "evt-hack", RedeemOptions{})
	assert.Equal(t, apperrors.ErrCodeUnknownCredential, apperrors.GetCode(err))
}

func TestRedeemMalformedToken(t *testing.T) {
	svc, _, _, _ := newRedemptionFixture()

	_, err := svc.Redeem(context.Background(), "??", "evt-hack", RedeemOptions{})
	assert.Equal(t, apperrors.ErrCodeUnknownCredential, apperrors.GetCode(err))
}

func TestRedeemPrefixedLegacyToken(t *testing.T) {
	const ownerID = "4f1c9f6e-8a3b-4c2d-9e1f-5a6b7c8d9e0f"
	profiles := newFakeProfileRepo(&model.Profile{
		ID:    ownerID,
		Email: "lee@example.com",
		Name:  "Lee Min",
	})
	regs := newFakeRegRepo(&model.EventRegistration{EventID: "evt-hack", OwnerID: ownerID})
	svc := NewRedemptionService(passthroughTx{}, profiles, regs, &fakeAuditRepo{}, nil)

	result, err := svc.Redeem(context.Background(), "VIBPASS-"+ownerID, "evt-hack", RedeemOptions{})
	require.NoError(t, err)
	assert.Equal(t, ownerID, result.OwnerID)
}

func TestRedeemBareOwnerUUID(t *testing.T) {
	const ownerID = "4f1c9f6e-8a3b-4c2d-9e1f-5a6b7c8d9e0f"
	profiles := newFakeProfileRepo(&model.Profile{ID: ownerID, Name: "Lee Min"})
	regs := newFakeRegRepo(&model.EventRegistration{EventID: "evt-hack", OwnerID: ownerID})
	svc := NewRedemptionService(passthroughTx{}, profiles, regs, &fakeAuditRepo{}, nil)

	result, err := svc.Redeem(context.Background(), ownerID, "evt-hack", RedeemOptions{})
	require.NoError(t, err)
	assert.Equal(t, ownerID, result.OwnerID)
}

func TestRedeemLegacyOwnerGone(t *testing.T) {
	svc, _, _, _ := newRedemptionFixture()

	payload := fmt.Sprintf(`{"userId":%q,"email":"x@example.com"}`, "deleted-owner")
	_, err := svc.Redeem(context.Background(), payload, "evt-hack", RedeemOptions{})
	assert.Equal(t, apperrors.ErrCodeOwnerNotFound, apperrors.GetCode(err))
}

func TestRedeemNotRegisteredForEvent(t *testing.T) {
	svc, _, _, _ := newRedemptionFixture()

	_, err := svc.Redeem(context.Background(), "VIBABCD1234", "evt-other", RedeemOptions{})
	assert.Equal(t, apperrors.ErrCodeNotRegisteredForEvent, apperrors.GetCode(err))
}

func TestRedeemRequiresEventID(t *testing.T) {
	svc, _, _, _ := newRedemptionFixture()

	_, err := svc.Redeem(context.Background(), "VIBABCD1234", "", RedeemOptions{})
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
}

func TestUndoResetsCheckin(t *testing.T) {
	svc, _, regs, audits := newRedemptionFixture()

	_, err := svc.Redeem(context.Background(), "VIBABCD1234", "evt-hack", RedeemOptions{})
	require.NoError(t, err)

	err = svc.Undo(context.Background(), "evt-hack", "owner-1", "staff-1")
	require.NoError(t, err)

	reg := regs.regs[regKey("evt-hack", "owner-1")]
	assert.False(t, reg.CheckedIn)
	assert.Nil(t, reg.CheckInTime)
	assert.Empty(t, audits.created)

	// And the pass redeems cleanly again.
	_, err = svc.Redeem(context.Background(), "VIBABCD1234", "evt-hack", RedeemOptions{})
	assert.NoError(t, err)
}

func TestUndoWithoutCheckin(t *testing.T) {
	svc, _, _, _ := newRedemptionFixture()

	err := svc.Undo(context.Background(), "evt-hack", "owner-1", "staff-1")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}
