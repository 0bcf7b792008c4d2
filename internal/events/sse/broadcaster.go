package sse

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mcoot/villefarm/internal/events"
	"github.com/mcoot/villefarm/internal/model"
)

// Message is the JSON body of a farm event on the stream
type Message struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Owner     string    `json:"owner"`
	Signer    string    `json:"signer"`
	Payload   any       `json:"payload,omitempty"`
}

// Broadcaster publishes farm events to the hub watching that farm
type Broadcaster struct {
	hubManager *HubManager
	logger     *slog.Logger
}

var _ events.Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hubManager *HubManager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubManager: hubManager,
		logger:     logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// Publish sends the event to watchers of its farm. Farms nobody watches are skipped.
func (b *Broadcaster) Publish(ctx context.Context, event model.Event) {
	hub := b.hubManager.GetHub(event.Owner)
	if hub == nil {
		return
	}

	data, err := json.Marshal(Message{
		ID:        event.ID,
		Type:      string(event.Type),
		Timestamp: event.Timestamp,
		Owner:     string(event.Owner),
		Signer:    string(event.Signer),
		Payload:   event.Payload,
	})
	if err != nil {
		b.logger.Error("sse failed to encode event",
			slog.String("event_id", event.ID),
			slog.Any("error", err))
		return
	}
	hub.BroadcastEvent(string(event.Type), string(data))
}
