package chatserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"aim-chat/conversation-core/internal/adapters/rpc"
	"aim-chat/conversation-core/internal/composition/chatservice"
	"aim-chat/conversation-core/internal/config"
	"aim-chat/conversation-core/internal/domains/delivery"
	"aim-chat/conversation-core/internal/platform/ratelimiter"
)

const shutdownTimeout = 10 * time.Second

// Runtime ties the service instance to its RPC transport.
type Runtime struct {
	App    *chatservice.App
	Server *rpc.Server
	logger *slog.Logger
}

// Build wires the chat service and the RPC/websocket server from cfg.
func Build(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	application, err := chatservice.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	srv, err := rpc.NewServer(rpc.Options{
		Addr:           cfg.Server.Addr,
		Token:          cfg.Server.Token,
		RequireToken:   cfg.TokenRequired(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RPCLimit: ratelimiter.Config{
			RPS:   cfg.Limits.RPCPerSecond,
			Burst: cfg.Limits.RPCBurst,
		},
		MaxSessions:        cfg.Limits.MaxSessions,
		MaxSessionsPerUser: cfg.Limits.MaxSessionsPerUser,
		Session:            delivery.SessionOptions{Buffer: cfg.Delivery.SessionBuffer},
	}, rpc.Deps{
		Service:   application.Service(),
		Authorize: application.Conversations.AuthorizeSubscription,
		Hub:       application.Hub,
		Metrics:   application.Metrics.Handler(),
		Sessions:  application.Metrics,
		Logger:    logger.With("component", "rpc"),
	})
	if err != nil {
		_ = application.Close(context.Background())
		return nil, err
	}
	return &Runtime{App: application, Server: srv, logger: logger}, nil
}

// Run starts the background workers and serves until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	r.App.Start(ctx)
	r.logger.Info("chat server starting", "addr", r.Server.Addr())
	runErr := r.Server.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	closeErr := r.App.Close(closeCtx)
	r.logger.Info("chat server stopped")
	return errors.Join(runErr, closeErr)
}
