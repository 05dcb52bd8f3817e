package rpc

import (
	"context"
	"net/http"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/internal/domains/delivery"
	"aim-chat/conversation-core/pkg/models"

	"github.com/gorilla/websocket"
)

// handleWS upgrades to a live session subscribed to the actor's user topic
// and every conversation the actor currently belongs to.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, err := contracts.RequireActor(actorID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	release, ok := s.sessions.acquire(actor)
	if !ok {
		http.Error(w, "too many live sessions", http.StatusTooManyRequests)
		return
	}
	defer release()

	convs, err := s.deps.Service.ListConversations(r.Context(), actor)
	if err != nil {
		http.Error(w, "failed to load conversations", http.StatusInternalServerError)
		return
	}
	topics := make([]string, 0, len(convs))
	for _, conv := range convs {
		topics = append(topics, models.ConversationTopic(conv.ID))
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	if s.deps.Sessions != nil {
		s.deps.Sessions.SessionOpened()
		defer s.deps.Sessions.SessionClosed()
	}

	authorize := s.deps.Authorize
	if authorize == nil {
		authorize = func(ctx context.Context, userID, conversationID string) error {
			_, err := s.deps.Service.GetConversation(ctx, conversationID, userID)
			return err
		}
	}
	session := delivery.NewSession(conn, s.deps.Hub, actor, topics, authorize, s.deps.Logger, s.opts.Session)
	started := time.Now()
	err = session.Run(r.Context())
	s.deps.Logger.Debug("live session closed", "actor_id", actor, "duration_ms", time.Since(started).Milliseconds(), "error", errString(err))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
