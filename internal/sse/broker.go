package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/vibranium-fest/pass-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

// Event is one live check-in update for an event's operator feed.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	EventID string
	Events  chan Event
	Done    chan struct{}
}

// eventStream is the local fan-out state for one event: its subscribed
// clients plus the context driving the redis pump. Cancelling the context
// stops the pump; a stream lives exactly as long as it has clients.
type eventStream struct {
	clients map[*Client]bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Broker fans redemption outcomes out to SSE clients. Redis pub/sub carries
// events between server instances; the broker bridges one subscription per
// event to all local clients watching that event. Without a redis client the
// broker degrades to in-process fan-out.
type Broker struct {
	redis   *redisclient.Client
	streams map[string]*eventStream // eventID -> stream
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		streams: make(map[string]*eventStream),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(eventID string) *Client {
	client := &Client{
		EventID: eventID,
		Events:  make(chan Event, 100),
		Done:    make(chan struct{}),
	}

	b.mu.Lock()
	stream := b.streams[eventID]
	if stream == nil {
		ctx, cancel := context.WithCancel(b.ctx)
		stream = &eventStream{
			clients: make(map[*Client]bool),
			ctx:     ctx,
			cancel:  cancel,
		}
		b.streams[eventID] = stream
		if b.redis != nil {
			go b.pump(ctx, eventID)
		}
	}
	stream.clients[client] = true
	clientCount := len(stream.clients)
	b.mu.Unlock()

	log.Info().
		Str("eventId", eventID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

// Unsubscribe removes the client; when it was the last one for its event the
// stream's pump is cancelled so a later Subscribe starts exactly one new pump.
func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream := b.streams[client.EventID]
	if stream == nil || !stream.clients[client] {
		return
	}

	delete(stream.clients, client)
	close(client.Done)

	if len(stream.clients) == 0 {
		stream.cancel()
		delete(b.streams, client.EventID)
	}

	log.Info().
		Str("eventId", client.EventID).
		Int("clientCount", len(stream.clients)).
		Msg("sse client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, eventID string, event Event) error {
	if b.redis == nil {
		b.broadcast(eventID, event)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.CheckinChannel(eventID)
	return b.redis.Publish(ctx, channel, data).Err()
}

// pump carries one event's redis pub/sub messages to the local clients. It
// exits when ctx is cancelled, either by the last Unsubscribe or by Close.
func (b *Broker) pump(ctx context.Context, eventID string) {
	channel := redisclient.CheckinChannel(eventID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("eventId", eventID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(eventID, event)
		}
	}
}

func (b *Broker) broadcast(eventID string, event Event) {
	b.mu.RLock()
	var clients []*Client
	if stream := b.streams[eventID]; stream != nil {
		clients = make([]*Client, 0, len(stream.clients))
		for client := range stream.clients {
			clients = append(clients, client)
		}
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("eventId", eventID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, stream := range b.streams {
		for client := range stream.clients {
			close(client.Done)
		}
	}
	b.streams = make(map[string]*eventStream)
}

func (b *Broker) ClientCount(eventID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if stream := b.streams[eventID]; stream != nil {
		return len(stream.clients)
	}
	return 0
}
