package token

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// ParticipantIDPrefix starts every minted participant ID.
	ParticipantIDPrefix = "VIB"

	// FallbackNamespace prefixes tokens minted for owners that have no
	// participant ID assigned yet, so every owner has some valid token.
	FallbackNamespace = "VIBPASS-"

	participantIDSuffixLen = 8

	minTokenLen = 3
	maxTokenLen = 100
)

// Base-36 alphabet for participant ID suffixes.
const participantIDChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	participantIDPattern = regexp.MustCompile(`^VIB[A-Za-z0-9]{3,20}$`)
	fallbackPattern      = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)
)

// Prefixes of the two historical UUID-based pass schemes. Still accepted
// on redemption so passes issued before the participant-ID format keep
// scanning.
var legacyUUIDPrefixes = []string{"VIBPASS-", "TECHPASS-"}

// Kind tags the result of decoding a scanned payload.
type Kind int

const (
	KindInvalid Kind = iota
	KindPlain
	KindLegacy
)

// LegacyRecord is the structured JSON payload an older issuance path
// encoded directly into the QR symbol.
type LegacyRecord struct {
	OwnerID string
	Email   string
	Name    string
}

// Decoded is the tagged-variant result of Decode.
type Decoded struct {
	Kind   Kind
	Token  string
	Legacy *LegacyRecord
}

// Mint returns the pass payload for an owner. A stable participant ID is
// used verbatim; otherwise the fallback namespace plus the owner identity.
func Mint(participantID, ownerID string) string {
	if participantID != "" {
		return participantID
	}
	return FallbackNamespace + ownerID
}

// MintParticipantID generates a fresh participant ID: the fixed prefix
// plus a random base-36 suffix, e.g. VIBABCD1234.
func MintParticipantID() (string, error) {
	var sb strings.Builder
	sb.WriteString(ParticipantIDPrefix)
	max := big.NewInt(int64(len(participantIDChars)))
	for i := 0; i < participantIDSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(participantIDChars[n.Int64()])
	}
	return sb.String(), nil
}

// IsWellFormed reports whether a scanned string is shaped like any token
// this system has ever issued. It accepts the current participant-ID
// format, the two historical prefixed-UUID schemes, bare UUIDs, and a
// permissive fallback for namespaced tokens.
func IsWellFormed(raw string) bool {
	t := strings.TrimSpace(raw)
	if len(t) < minTokenLen || len(t) > maxTokenLen {
		return false
	}

	if participantIDPattern.MatchString(t) {
		return true
	}
	for _, prefix := range legacyUUIDPrefixes {
		if rest, ok := strings.CutPrefix(t, prefix); ok {
			if _, err := uuid.Parse(rest); err == nil {
				return true
			}
		}
	}
	if _, err := uuid.Parse(t); err == nil {
		return true
	}
	return fallbackPattern.MatchString(t)
}

// TryLegacyDecode parses raw as the old structured JSON payload. Returns
// nil if raw is not structured data, signalling the caller to treat it as
// a plain token.
func TryLegacyDecode(raw string) *LegacyRecord {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}

	var payload struct {
		UserID  string `json:"userId"`
		UserID2 string `json:"user_id"`
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil
	}

	ownerID := firstNonEmpty(payload.UserID, payload.UserID2, payload.ID)
	if ownerID == "" {
		return nil
	}

	return &LegacyRecord{
		OwnerID: ownerID,
		Email:   payload.Email,
		Name:    payload.Name,
	}
}

// CutLegacyPrefix extracts the owner UUID from a prefixed legacy token.
func CutLegacyPrefix(t string) (string, bool) {
	for _, prefix := range legacyUUIDPrefixes {
		if rest, ok := strings.CutPrefix(t, prefix); ok {
			if _, err := uuid.Parse(rest); err == nil {
				return rest, true
			}
		}
	}
	return "", false
}

// Decode classifies a scanned payload so redemption can dispatch on an
// explicit tag instead of re-sniffing the string.
func Decode(raw string) Decoded {
	if rec := TryLegacyDecode(raw); rec != nil {
		return Decoded{Kind: KindLegacy, Legacy: rec}
	}

	t := strings.TrimSpace(raw)
	if !IsWellFormed(t) {
		return Decoded{Kind: KindInvalid}
	}
	return Decoded{Kind: KindPlain, Token: t}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
