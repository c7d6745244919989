package model

import (
	"time"
)

// CheckinAudit rows are append-only: one per successful redemption,
// never updated or deleted except by the explicit staff undo.
type CheckinAudit struct {
	ID          string     `db:"id" json:"id"`
	EventID     string     `db:"event_id" json:"eventId"`
	OwnerID     string     `db:"owner_id" json:"ownerId"`
	TokenUsed   string     `db:"token_used" json:"tokenUsed"`
	Zone        *string    `db:"zone" json:"zone,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CheckInTime time.Time  `db:"check_in_time" json:"checkInTime"`
}

type CreateCheckinAuditParams struct {
	EventID     string
	OwnerID     string
	TokenUsed   string
	Zone        *string
	Notes       *string
	CheckInTime time.Time
}

// RedemptionResult is returned to the scanning operator.
type RedemptionResult struct {
	OwnerID       string    `json:"ownerId"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	ParticipantID string    `json:"participantId"`
	EventID       string    `json:"eventId"`
	CheckInTime   time.Time `json:"checkInTime"`
}
