package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/internal/domains/delivery"
	"aim-chat/conversation-core/internal/platform/ratelimiter"
)

const DefaultAddr = "127.0.0.1:8787"

const actorHeader = "X-Actor-ID"

// SessionCounters receives live session open/close notifications.
type SessionCounters interface {
	SessionOpened()
	SessionClosed()
}

type Options struct {
	Addr               string
	Token              string
	RequireToken       bool
	AllowedOrigins     []string
	RPCLimit           ratelimiter.Config
	MaxSessions        int
	MaxSessionsPerUser int
	Session            delivery.SessionOptions
}

type Deps struct {
	Service contracts.ChatService
	// Authorize checks a live session's request to follow a conversation.
	Authorize delivery.Authorizer
	Hub       *delivery.Hub
	Metrics   http.Handler
	Sessions  SessionCounters
	Logger    *slog.Logger
}

type Server struct {
	httpServer  *http.Server
	deps        Deps
	opts        Options
	rpcLimiter  *ratelimiter.MapLimiter
	sessions    *sessionLimiter
	idempotency *idempotencyCache
}

func NewServer(opts Options, deps Deps) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("rpc server requires a chat service")
	}
	if opts.RequireToken && strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("rpc token is required")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.Token == "" {
		deps.Logger.Warn("rpc token is not set; RPC auth disabled")
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		deps:        deps,
		opts:        opts,
		rpcLimiter:  ratelimiter.New(opts.RPCLimit),
		sessions:    newSessionLimiter(opts.MaxSessions, opts.MaxSessionsPerUser),
		idempotency: newIdempotencyCache(),
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	if deps.Hub != nil {
		mux.HandleFunc("/ws", s.handleWS)
	}
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}
	return s, nil
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	// Live sessions are hijacked connections that Shutdown does not track;
	// deriving request contexts from ctx ends them too.
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()
	s.deps.Logger.Info("rpc server listening", "addr", s.opts.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.applyCORS(w, r) {
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin != "" && !s.isAllowedOrigin(origin) {
		http.Error(w, "origin is not allowed", http.StatusForbidden)
		return false
	}
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.Header().Set("Vary", "Origin")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Actor-ID, Idempotency-Key")
	return true
}

func (s *Server) isAllowedOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.TrimSpace(u.Hostname())
	if host == "" {
		return false
	}
	return slices.Contains(s.opts.AllowedOrigins, host)
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.opts.Token == "" && !s.opts.RequireToken {
		return true
	}
	if extractToken(r) != s.opts.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func extractToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	// Browsers cannot set headers on a websocket handshake.
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// actorID is asserted by the authenticating proxy in front of this service.
func actorID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(actorHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("actor_id"))
}
