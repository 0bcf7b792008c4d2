// Package events fans committed farm transitions out to interested sinks.
package events

import (
	"context"
	"log/slog"

	"github.com/mcoot/villefarm/internal/model"
)

// Publisher receives events after the transition they describe has committed.
// Publish must not block for long; slow sinks should buffer or drop.
type Publisher interface {
	Publish(ctx context.Context, event model.Event)
}

// Multi publishes each event to every publisher in order
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event model.Event) {
	for _, p := range m {
		p.Publish(ctx, event)
	}
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, model.Event) {}

// Log writes every event to a structured logger
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log publisher
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With(slog.String("component", "events"))}
}

func (l *Log) Publish(ctx context.Context, event model.Event) {
	attrs := []any{
		slog.String("event_id", event.ID),
		slog.String("type", string(event.Type)),
		slog.String("owner", string(event.Owner)),
		slog.String("signer", string(event.Signer)),
	}
	switch p := event.Payload.(type) {
	case model.PlantedPayload:
		attrs = append(attrs, slog.String("kind", p.Kind.String()), slog.Uint64("cost", p.Cost), slog.Uint64("gold", p.GoldAfter))
	case model.HarvestedPayload:
		attrs = append(attrs, slog.String("kind", p.Kind.String()), slog.Uint64("reward", p.Reward), slog.Uint64("gold", p.GoldAfter))
	case model.PlayerInitializedPayload:
		attrs = append(attrs, slog.Uint64("gold", p.Gold), slog.Uint64("energy", p.Energy))
	}
	l.logger.InfoContext(ctx, "farm event", attrs...)
}
