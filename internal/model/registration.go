package model

import (
	"time"
)

// EventRegistration is owned by the registration flow; this service reads
// it for eligibility and mutates only checked_in / check_in_time.
type EventRegistration struct {
	EventID     string             `db:"event_id" json:"eventId"`
	OwnerID     string             `db:"owner_id" json:"ownerId"`
	Status      RegistrationStatus `db:"status" json:"status"`
	CheckedIn   bool               `db:"checked_in" json:"checkedIn"`
	CheckInTime *time.Time         `db:"check_in_time" json:"checkInTime,omitempty"`
	CreatedAt   time.Time          `db:"created_at" json:"createdAt"`
}
