package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultChannel is the Pub/Sub channel used when none is configured.
const DefaultChannel = "temporal/realtime"

// Bus publishes and receives events over Redis Pub/Sub.
type Bus struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewBus creates a Bus on channel.
func NewBus(client *redis.Client, channel string, logger *zap.Logger) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{client: client, channel: channel, logger: logger}
}

// Publish sends ev to every listener. Missing IDs and timestamps are filled in.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %q: %w", ev.Name, err)
	}
	b.logger.Debug("event published",
		zap.String("event", ev.Name),
		zap.String("user", ev.User),
		zap.String("id", ev.ID))
	return nil
}

// Listen subscribes to the channel and dispatches events addressed to user
// until ctx is cancelled.
func (b *Bus) Listen(ctx context.Context, user string, reg *Registry) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() {
		if cerr := sub.Close(); cerr != nil {
			// Best-effort unsubscribe.
			_ = cerr
		}
	}()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.Info("listening for events", zap.String("channel", b.channel), zap.String("user", user))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				b.logger.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			if !accept(ev, user) {
				continue
			}
			if !reg.Dispatch(ev) {
				b.logger.Debug("no listener for event", zap.String("event", ev.Name))
			}
		}
	}
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	if ev.Name == "" {
		return Event{}, errors.New("event without name")
	}
	return ev, nil
}

// accept reports whether ev is addressed to user.
func accept(ev Event, user string) bool {
	return ev.User == "" || ev.User == user
}
