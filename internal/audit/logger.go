package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventPassIssued       EventType = "pass_issued"
	EventPassRefreshed    EventType = "pass_refreshed"
	EventPassEmailQueued  EventType = "pass_email_queued"
	EventCheckinSuccess   EventType = "checkin_success"
	EventCheckinDuplicate EventType = "checkin_duplicate"
	EventCheckinRejected  EventType = "checkin_rejected"
	EventCheckinUndo      EventType = "checkin_undo"
	EventScanSuppressed   EventType = "scan_suppressed"
	EventCameraFailure    EventType = "camera_failure"
	EventAuthFailure      EventType = "auth_failure"
	EventRateLimitExceed  EventType = "rate_limit_exceeded"
)

type Event struct {
	Type      EventType
	OwnerID   string
	StaffID   string
	EventID   string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

// Log writes a structured audit line. This complements, never replaces,
// the append-only checkin_audit table: the table is the record, the log
// is for operators.
func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "checkin").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.OwnerID != "" {
		logger = logger.With().Str("owner_id", event.OwnerID).Logger()
	}
	if event.StaffID != "" {
		logger = logger.With().Str("staff_id", event.StaffID).Logger()
	}
	if event.EventID != "" {
		logger = logger.With().Str("event_id", event.EventID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case time.Time:
		return e.Time(key, v)
	case time.Duration:
		return e.Dur(key, v)
	default:
		return e.Interface(key, v)
	}
}
