package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"aim-chat/conversation-core/pkg/models"

	"github.com/redis/go-redis/v9"
)

// LocalBroker publishes straight into an in-process hub. It is the broker for
// single-instance deployments and tests.
type LocalBroker struct {
	hub *Hub
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(ctx context.Context, evt models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.hub.Publish(evt)
	return nil
}

const DefaultChannelPrefix = "chat:events:"

// RedisBroker publishes events on a redis channel per topic and relays every
// channel under its prefix into the local hub, so sessions on any instance
// receive events produced on any other.
type RedisBroker struct {
	client *redis.Client
	prefix string
	hub    *Hub
	logger *slog.Logger
}

func NewRedisBroker(client *redis.Client, prefix string, hub *Hub, logger *slog.Logger) *RedisBroker {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroker{client: client, prefix: prefix, hub: hub, logger: logger}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

func (b *RedisBroker) Publish(ctx context.Context, evt models.Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.prefix+evt.Topic, raw).Err()
}

// Run relays subscribed redis messages into the hub until ctx is done.
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			evt, err := decodeRelayed(b.prefix, msg.Channel, msg.Payload)
			if err != nil {
				b.logger.Warn("redis event decode failed", "channel", msg.Channel, "error", err.Error())
				continue
			}
			b.hub.Publish(evt)
		}
	}
}

// decodeRelayed trusts the channel name over the topic embedded in the payload.
func decodeRelayed(prefix, channel, payload string) (models.Event, error) {
	topic, ok := strings.CutPrefix(channel, prefix)
	if !ok || topic == "" {
		return models.Event{}, errors.New("channel outside prefix")
	}
	var evt models.Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return models.Event{}, err
	}
	evt.Topic = topic
	return evt, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
