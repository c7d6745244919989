package model

import (
	"time"
)

// Profile is the participant's account record. The qr_code column holds the
// exact token encoded into the pass (used for redemption lookup), qr_code_data
// the rendered symbol as a data URL. Both are a cache owned by the issuer;
// the store is the source of truth.
type Profile struct {
	ID                string     `db:"id" json:"id"`
	Email             string     `db:"email" json:"email"`
	Name              string     `db:"name" json:"name"`
	ParticipantID     *string    `db:"participant_id" json:"participantId,omitempty"`
	QRCode            *string    `db:"qr_code" json:"-"`
	QRCodeData        *string    `db:"qr_code_data" json:"-"`
	QRCodeGeneratedAt *time.Time `db:"qr_code_generated_at" json:"qrCodeGeneratedAt,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

type UpdateCredentialParams struct {
	ParticipantID string
	QRCode        string
	QRCodeData    string
	GeneratedAt   time.Time
}
