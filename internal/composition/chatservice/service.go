package chatservice

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"aim-chat/conversation-core/internal/app"
	"aim-chat/conversation-core/internal/config"
	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/internal/domains/conversation"
	"aim-chat/conversation-core/internal/domains/delivery"
	"aim-chat/conversation-core/internal/domains/messaging"
	"aim-chat/conversation-core/internal/domains/notification"
	"aim-chat/conversation-core/internal/domains/privacy"
	"aim-chat/conversation-core/internal/platform/metrics"
	"aim-chat/conversation-core/internal/platform/ratelimiter"
)

// App owns every long-lived component of one service instance.
type App struct {
	Storage       StorageBundle
	Metrics       *metrics.Metrics
	Hub           *delivery.Hub
	Fanout        *delivery.Fanout
	Notifications *notification.Dispatcher
	Gate          *privacy.Gate
	Conversations *conversation.Service
	Messaging     *messaging.Service

	logger *slog.Logger
	relay  *delivery.RedisBroker
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bundle, err := BuildStorageBundle(cfg.Storage, cfg.Blob)
	if err != nil {
		return nil, err
	}
	a := &App{
		Storage: bundle,
		Metrics: metrics.New(),
		Hub:     delivery.NewHub(),
		logger:  logger,
	}

	var broker contracts.RealtimeBroker
	switch strings.ToLower(strings.TrimSpace(cfg.Broker.Kind)) {
	case config.BrokerRedis:
		client, err := delivery.NewRedisClient(cfg.Broker.RedisURL)
		if err != nil {
			_ = bundle.Docs.Close()
			return nil, err
		}
		a.relay = delivery.NewRedisBroker(client, cfg.Broker.ChannelPrefix, a.Hub, logger.With("component", "redis_broker"))
		broker = a.relay
	default:
		broker = delivery.NewLocalBroker(a.Hub)
	}

	a.Fanout = delivery.NewFanout(broker, delivery.FanoutOptions{
		QueueSize:      cfg.Delivery.QueueSize,
		Workers:        cfg.Delivery.Workers,
		PublishTimeout: cfg.Delivery.PublishTimeout,
	}, logger.With("component", "fanout"), a.Metrics)

	a.Gate = privacy.NewGate(bundle.Directory, bundle.Directory)
	a.Notifications = notification.NewDispatcher(notification.Deps{
		Store:       bundle.Notifications,
		Preferences: a.Gate,
		Directory:   bundle.Directory,
		GenerateID:  app.GeneratePrefixedID,
		Logger:      logger.With("component", "notifications"),
		Counters:    a.Metrics,
	}, notification.Options{
		QueueSize:     cfg.Notifications.QueueSize,
		Workers:       cfg.Notifications.Workers,
		ActionBaseURL: cfg.Notifications.ActionBaseURL,
	})

	a.Conversations = conversation.NewService(conversation.ServiceDeps{
		Conversations:  bundle.Conversations,
		Gate:           a.Gate,
		GenerateID:     app.GeneratePrefixedID,
		TrackOperation: a.Metrics.TrackOperation,
		Emit:           a.Fanout.Emit,
		Notify:         a.Notifications.Dispatch,
		Logger:         logger.With("component", "conversation"),
	})
	a.Messaging = messaging.NewService(messaging.ServiceDeps{
		Conversations: bundle.Conversations,
		Messages:      bundle.Messages,
		Stars:         bundle.Stars,
		Blobs:         bundle.Blobs,
		Gate:          a.Gate,
		Directs:       a.Conversations,
		Limiter: ratelimiter.New(ratelimiter.Config{
			RPS:   cfg.Limits.SendPerSecond,
			Burst: cfg.Limits.SendBurst,
		}),
		GenerateID:     app.GeneratePrefixedID,
		TrackOperation: a.Metrics.TrackOperation,
		Emit:           a.Fanout.Emit,
		Notify:         a.Notifications.Dispatch,
		Logger:         logger.With("component", "messaging"),
	})
	return a, nil
}

// Start launches the background workers. Queued work drains on Close; the
// redis relay stops with ctx.
func (a *App) Start(ctx context.Context) {
	a.Fanout.Start(ctx)
	a.Notifications.Start(ctx)
	if a.relay != nil {
		go func() {
			if err := a.relay.Run(ctx); err != nil {
				a.logger.Error("redis relay stopped", "error", err.Error())
			}
		}()
	}
}

// Close drains the queues and then releases storage.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Fanout.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Notifications.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.relay != nil {
		if err := a.relay.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Storage.Docs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Service is the transport-facing facade over the domain services.
func (a *App) Service() contracts.ChatService {
	return &chatService{
		Service:       a.Conversations,
		messages:      a.Messaging,
		gate:          a.Gate,
		notifications: a.Notifications,
	}
}
