package delivery

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/pkg/models"

	"github.com/gorilla/websocket"
)

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// ClientFrame is the only frame a live session accepts from the client.
type ClientFrame struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id"`
}

// ControlFrame acknowledges or rejects a client frame.
type ControlFrame struct {
	Type           string `json:"type"`
	Action         string `json:"action,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Authorizer reports whether userID may follow conversationID's topic.
type Authorizer func(ctx context.Context, userID, conversationID string) error

type SessionOptions struct {
	Buffer       int
	WriteTimeout time.Duration
	PongWait     time.Duration
	MaxFrameSize int64
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Buffer <= 0 {
		o.Buffer = defaultSubscriptionBuffer
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = 4096
	}
	return o
}

// Session pumps hub events to one websocket connection and applies the
// client's subscribe and unsubscribe frames.
type Session struct {
	conn      *websocket.Conn
	sub       *Subscription
	userID    string
	authorize Authorizer
	logger    *slog.Logger
	opts      SessionOptions

	writeMu sync.Mutex
}

// NewSession subscribes userID to its own user topic plus topics.
func NewSession(conn *websocket.Conn, hub *Hub, userID string, topics []string, authorize Authorizer, logger *slog.Logger, opts SessionOptions) *Session {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	all := append([]string{models.UserTopic(userID)}, topics...)
	return &Session{
		conn:      conn,
		sub:       hub.Subscribe(opts.Buffer, all...),
		userID:    userID,
		authorize: authorize,
		logger:    logger,
		opts:      opts,
	}
}

// Run blocks until the client disconnects, the subscription is dropped or
// ctx ends. The connection is closed on return.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.sub.Close()
	defer s.conn.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writePump(ctx)
		cancel()
		// Unblock the reader when the writer stops first.
		_ = s.conn.SetReadDeadline(time.Now())
	}()
	err := s.readPump(ctx)
	cancel()
	wg.Wait()
	return err
}

func (s *Session) readPump(ctx context.Context) error {
	s.conn.SetReadLimit(s.opts.MaxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})
	for {
		var frame ClientFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		s.write(s.apply(ctx, frame))
	}
}

func (s *Session) apply(ctx context.Context, frame ClientFrame) ControlFrame {
	out := ControlFrame{Type: "ack", Action: frame.Action, ConversationID: frame.ConversationID}
	conversationID := strings.TrimSpace(frame.ConversationID)
	if conversationID == "" {
		out.Type, out.Error = "error", "conversation_id is required"
		return out
	}
	topic := models.ConversationTopic(conversationID)
	switch frame.Action {
	case ActionSubscribe:
		if s.authorize != nil {
			if err := s.authorize(ctx, s.userID, conversationID); err != nil {
				out.Type, out.Error = "error", errorReason(err)
				return out
			}
		}
		s.sub.Add(topic)
	case ActionUnsubscribe:
		s.sub.Remove(topic)
	default:
		out.Type, out.Error = "error", "unknown action"
	}
	return out
}

func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(s.opts.PongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.writeClose(websocket.CloseNormalClosure, "")
			return
		case evt, ok := <-s.sub.C():
			if !ok {
				s.writeClose(websocket.CloseTryAgainLater, "subscriber too slow")
				return
			}
			// Events queued before their topic was dropped stay undelivered.
			if !s.sub.Has(evt.Topic) {
				continue
			}
			if err := s.write(evt); err != nil {
				return
			}
			s.followMembership(evt)
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// followMembership drops a conversation topic once the conversation is gone
// or this session's user has left it.
func (s *Session) followMembership(evt models.Event) {
	if evt.Type != models.EventConversationDeleted && evt.Type != models.EventMemberLeft {
		return
	}
	change, ok := membershipOf(evt.Payload)
	if !ok || change.ConversationID == "" {
		return
	}
	if evt.Type == models.EventMemberLeft && change.UserID != s.userID {
		return
	}
	s.sub.Remove(models.ConversationTopic(change.ConversationID))
}

// membershipOf reads the payload in its in-process form or as decoded JSON
// from the redis relay.
func membershipOf(payload any) (models.MembershipChange, bool) {
	switch p := payload.(type) {
	case models.MembershipChange:
		return p, true
	case map[string]string:
		return models.MembershipChange{ConversationID: p["conversation_id"], UserID: p["user_id"]}, true
	case map[string]any:
		conversationID, _ := p["conversation_id"].(string)
		userID, _ := p["user_id"].(string)
		return models.MembershipChange{ConversationID: conversationID, UserID: userID}, true
	default:
		return models.MembershipChange{}, false
	}
}

func (s *Session) write(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	err := s.conn.WriteJSON(v)
	if err != nil {
		s.logger.Debug("session write failed", "user_id", s.userID, "error", err.Error())
	}
	return err
}

func (s *Session) writeClose(code int, text string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(s.opts.WriteTimeout))
}

func errorReason(err error) string {
	if reason := contracts.ReasonOf(err); reason != "" {
		return reason
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return contracts.KindOf(err)
}
