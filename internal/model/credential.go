package model

import (
	"time"
)

// Credential is a participant's pass: the token payload plus its rendered
// QR symbol. Payload always equals ParticipantID; the legacy JSON payload
// format is accepted on redemption only, never issued.
type Credential struct {
	ParticipantID string    `json:"participantId"`
	OwnerID       string    `json:"ownerId"`
	Payload       string    `json:"payload"`
	SymbolImage   string    `json:"symbolImage"`
	IssuedAt      time.Time `json:"issuedAt"`
}
