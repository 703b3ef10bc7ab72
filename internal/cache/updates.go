package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spherical-ai/appraisal/internal/observability"
)

// Publisher publishes JSON messages on a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// Subscriber delivers raw messages from a channel until unsubscribe is called.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// ModelUpdate announces that a model snapshot slot was rewritten.
type ModelUpdate struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateNotifier publishes ModelUpdate messages after a snapshot is persisted.
type UpdateNotifier struct {
	pub     Publisher
	channel string
	source  string
}

// NewUpdateNotifier creates a notifier. source identifies this process so it can
// ignore its own announcements.
func NewUpdateNotifier(pub Publisher, channel, source string) *UpdateNotifier {
	return &UpdateNotifier{pub: pub, channel: channel, source: source}
}

// ModelUpdated publishes an update for the named snapshot.
func (n *UpdateNotifier) ModelUpdated(ctx context.Context, name string) error {
	return n.pub.Publish(ctx, n.channel, ModelUpdate{
		Name:      name,
		Source:    n.source,
		UpdatedAt: time.Now().UTC(),
	})
}

// WatchUpdates calls onUpdate for every ModelUpdate published by another source.
// It blocks until ctx is done or the subscription ends.
func WatchUpdates(ctx context.Context, sub Subscriber, channel, source string, logger *observability.Logger, onUpdate func(context.Context, ModelUpdate)) error {
	logger = observability.OrNop(logger).WithComponent("model-updates")

	msgs, unsubscribe, err := sub.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	defer unsubscribe()

	logger.Info().Str("channel", channel).Msg("Watching model updates")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			var update ModelUpdate
			if err := json.Unmarshal(raw, &update); err != nil {
				logger.Warn().Err(err).Msg("Discarding malformed model update")
				continue
			}
			if update.Source == source {
				continue
			}
			logger.Info().Str("name", update.Name).Str("source", update.Source).Msg("Model update received")
			onUpdate(ctx, update)
		}
	}
}
