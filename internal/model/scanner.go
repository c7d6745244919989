package model

import (
	"time"
)

// ScannerSession tracks one operator's scan surface for an event zone.
// State machine: idle -> scanning <-> paused -> idle (stop).
type ScannerSession struct {
	ID          string       `db:"id" json:"id"`
	StaffID     string       `db:"staff_id" json:"staffId"`
	EventID     string       `db:"event_id" json:"eventId"`
	Zone        *string      `db:"zone" json:"zone,omitempty"`
	State       ScannerState `db:"state" json:"state"`
	CameraError *CameraError `db:"camera_error" json:"cameraError,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updatedAt"`
	ExpiresAt   time.Time    `db:"expires_at" json:"expiresAt"`
}

type CreateScannerSessionParams struct {
	StaffID   string
	EventID   string
	Zone      *string
	ExpiresAt time.Time
}
