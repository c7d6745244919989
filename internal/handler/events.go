package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/vibranium-fest/pass-server-go/internal/middleware"
	"github.com/vibranium-fest/pass-server-go/internal/sse"
)

// LiveHandler streams redemption outcomes for one event to operator
// dashboards over SSE.
type LiveHandler struct {
	broker *sse.Broker
}

func NewLiveHandler(broker *sse.Broker) *LiveHandler {
	return &LiveHandler{broker: broker}
}

// GET /staff/events/{eventID}/live
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	staff := middleware.GetStaff(r.Context())
	if staff == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(eventID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("eventId", eventID).
		Str("staffId", staff.ID).
		Msg("live feed connected")

	if err := h.sendEvent(w, flusher, "connected", map[string]any{
		"eventId": eventID,
		"staffId": staff.ID,
	}); err != nil {
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("eventId", eventID).
				Msg("live feed closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("eventId", eventID).
				Msg("live feed closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send live event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("eventId", eventID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *LiveHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *LiveHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
