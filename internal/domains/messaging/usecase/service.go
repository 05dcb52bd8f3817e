package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	conversationpolicy "aim-chat/conversation-core/internal/domains/conversation/policy"
	messagingpolicy "aim-chat/conversation-core/internal/domains/messaging/policy"
	privacypolicy "aim-chat/conversation-core/internal/domains/privacy/policy"
	"aim-chat/conversation-core/pkg/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AccessChecker is the access gate as seen by the message lifecycle.
type AccessChecker interface {
	Check(ctx context.Context, mode privacypolicy.CheckMode, recipientID, senderID string) error
	IsDeactivated(ctx context.Context, userID string) (bool, error)
}

// DirectResolver finds or creates the direct conversation for a pair.
type DirectResolver interface {
	GetOrCreateDirect(ctx context.Context, actorID, otherID string) (models.Conversation, error)
}

type SendLimiter interface {
	Allow(key string, now time.Time) bool
}

type ServiceDeps struct {
	Conversations contracts.ConversationRepository
	Messages      contracts.MessageRepository
	Stars         contracts.StarRepository
	Blobs         contracts.BlobStore
	Gate          AccessChecker
	Directs       DirectResolver
	Limiter       SendLimiter

	GenerateID     func(prefix string) (string, error)
	Now            func() time.Time
	TrackOperation func(operation string, errRef *error) func()
	Emit           func(topic string, eventType models.EventType, payload any)
	Notify         func(req models.NotificationRequest)
	Logger         *slog.Logger
}

type Service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) *Service {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.TrackOperation == nil {
		deps.TrackOperation = func(string, *error) func() { return func() {} }
	}
	if deps.Emit == nil {
		deps.Emit = func(string, models.EventType, any) {}
	}
	if deps.Notify == nil {
		deps.Notify = func(models.NotificationRequest) {}
	}
	return &Service{deps: deps}
}

func (s *Service) SendMessage(ctx context.Context, actorID string, req models.MessageSendRequest) (msg models.Message, err error) {
	defer s.deps.TrackOperation("message.send", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return models.Message{}, err
	}
	in, err := messagingpolicy.ValidateSendInput(req)
	if err != nil {
		return models.Message{}, err
	}
	conv, err := s.loadConversation(ctx, req.ConversationID)
	if err != nil {
		return models.Message{}, err
	}
	return s.send(ctx, actorID, conv, in)
}

// SendDirectMessage resolves the direct conversation with recipientID,
// creating it when needed, and sends into it.
func (s *Service) SendDirectMessage(ctx context.Context, actorID, recipientID string, req models.MessageSendRequest) (msg models.Message, err error) {
	defer s.deps.TrackOperation("message.send_direct", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return models.Message{}, err
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return models.Message{}, messagingpolicy.ErrRecipientRequired
	}
	in, err := messagingpolicy.ValidateSendInput(req)
	if err != nil {
		return models.Message{}, err
	}
	conv, err := s.deps.Directs.GetOrCreateDirect(ctx, actorID, recipientID)
	if err != nil {
		return models.Message{}, err
	}
	return s.send(ctx, actorID, conv, in)
}

// SharePost sends a post-variant message with an optional comment.
func (s *Service) SharePost(ctx context.Context, actorID, postID, conversationID, comment string) (msg models.Message, err error) {
	defer s.deps.TrackOperation("message.share", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return models.Message{}, err
	}
	in, err := messagingpolicy.ValidateSendInput(models.MessageSendRequest{
		ConversationID: conversationID,
		Content:        comment,
		MessageType:    string(models.MessageTypePost),
		PostID:         postID,
	})
	if err != nil {
		return models.Message{}, err
	}
	conv, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	return s.send(ctx, actorID, conv, in)
}

func (s *Service) send(ctx context.Context, actorID string, conv models.Conversation, in messagingpolicy.SendInput) (models.Message, error) {
	if err := s.authorizeSend(ctx, actorID, conv); err != nil {
		return models.Message{}, err
	}
	if in.ReplyTo != "" {
		target, found, err := s.deps.Messages.GetMessage(ctx, in.ReplyTo)
		if err != nil {
			return models.Message{}, contracts.Internal(err)
		}
		if !found || target.ConversationID != conv.ID {
			return models.Message{}, messagingpolicy.ErrInvalidReply
		}
	}
	fileURL := ""
	if in.FileRef != "" && (in.Type == models.MessageTypeImage || in.Type == models.MessageTypeFile) {
		resolved, err := s.deps.Blobs.ResolveURL(ctx, in.FileRef)
		if err != nil {
			return models.Message{}, contracts.WrapKind(contracts.KindBadRequest, err)
		}
		fileURL = resolved
	}
	id, err := s.deps.GenerateID("msg")
	if err != nil {
		return models.Message{}, contracts.Internal(err)
	}
	msg := messagingpolicy.NewMessage(id, conv.ID, actorID, in, fileURL, s.deps.Now())
	return s.commit(ctx, actorID, conv, msg)
}

// authorizeSend re-evaluates everything that may have changed since the
// conversation was created.
func (s *Service) authorizeSend(ctx context.Context, actorID string, conv models.Conversation) error {
	if err := conversationpolicy.EnsureParticipant(conv, actorID); err != nil {
		return err
	}
	if s.deps.Limiter != nil && !s.deps.Limiter.Allow(actorID, s.deps.Now()) {
		return messagingpolicy.ErrRateLimited
	}
	deactivated, err := s.deps.Gate.IsDeactivated(ctx, actorID)
	if err != nil {
		return err
	}
	if deactivated {
		return privacypolicy.ErrDeactivated
	}
	if conv.Type == models.ConversationTypeDirect {
		if other := conv.OtherParticipant(actorID); other != "" {
			return s.deps.Gate.Check(ctx, privacypolicy.CheckDirectDelivery, other, actorID)
		}
	}
	return nil
}

func (s *Service) commit(ctx context.Context, actorID string, conv models.Conversation, msg models.Message) (models.Message, error) {
	if err := s.deps.Messages.CreateMessage(ctx, msg); err != nil {
		return models.Message{}, contracts.Internal(err)
	}
	_, err := s.deps.Conversations.UpdateConversation(ctx, conv.ID, func(c *models.Conversation) (bool, error) {
		c.LastMessageID = msg.ID
		c.UpdatedAt = msg.CreatedAt
		return true, nil
	})
	if err != nil {
		// The message is stored; a concurrent delete only loses the preview.
		s.deps.Logger.Warn("conversation touch failed", "conversation_id", conv.ID, "message_id", msg.ID, "error", err.Error())
	}
	s.deps.Logger.Debug("message sent", "conversation_id", conv.ID, "message_id", msg.ID, "sender_id", actorID, "type", string(msg.Type))
	s.deps.Emit(models.ConversationTopic(conv.ID), models.EventNewMessage, msg)
	s.deps.Notify(models.NotificationRequest{
		ActorID:        actorID,
		RecipientIDs:   conv.Participants,
		Type:           models.NotificationMessage,
		EntityType:     "message",
		EntityID:       msg.ID,
		ConversationID: conv.ID,
	})
	return msg, nil
}

func (s *Service) EditMessage(ctx context.Context, messageID, actorID, content string) (msg models.Message, err error) {
	defer s.deps.TrackOperation("message.edit", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return models.Message{}, err
	}
	content = strings.TrimSpace(content)
	msg, err = s.deps.Messages.UpdateMessage(ctx, strings.TrimSpace(messageID), func(m *models.Message) (bool, error) {
		if err := messagingpolicy.EnsureSender(*m, actorID); err != nil {
			return false, err
		}
		if err := messagingpolicy.ValidateContent(content, m.Type == models.MessageTypeText); err != nil {
			return false, err
		}
		messagingpolicy.ApplyEdit(m, content, s.deps.Now())
		return true, nil
	})
	if err != nil {
		return models.Message{}, messageError(err)
	}
	s.deps.Emit(models.ConversationTopic(msg.ConversationID), models.EventMessageEdited, msg)
	return msg, nil
}

// DeleteMessage hard-deletes the message. Pins, stars and replies that point
// at it are left in place.
func (s *Service) DeleteMessage(ctx context.Context, messageID, actorID string) (err error) {
	defer s.deps.TrackOperation("message.delete", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return err
	}
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := messagingpolicy.EnsureSender(msg, actorID); err != nil {
		return err
	}
	if _, err := s.deps.Messages.DeleteMessage(ctx, msg.ID); err != nil {
		return contracts.Internal(err)
	}
	s.deps.Logger.Info("message deleted", "conversation_id", msg.ConversationID, "message_id", msg.ID, "actor_id", actorID)
	s.deps.Emit(models.ConversationTopic(msg.ConversationID), models.EventMessageDeleted, map[string]string{
		"message_id":      msg.ID,
		"conversation_id": msg.ConversationID,
	})
	return nil
}

func (s *Service) ForwardMessage(ctx context.Context, messageID, conversationID, actorID string) (msg models.Message, err error) {
	defer s.deps.TrackOperation("message.forward", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return models.Message{}, err
	}
	src, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	source, err := s.loadConversation(ctx, src.ConversationID)
	if err != nil {
		return models.Message{}, err
	}
	if err := conversationpolicy.EnsureParticipant(source, actorID); err != nil {
		return models.Message{}, err
	}
	target, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	if err := s.authorizeSend(ctx, actorID, target); err != nil {
		return models.Message{}, err
	}
	id, err := s.deps.GenerateID("msg")
	if err != nil {
		return models.Message{}, contracts.Internal(err)
	}
	return s.commit(ctx, actorID, target, messagingpolicy.ForwardCopy(src, id, target.ID, actorID, s.deps.Now()))
}

// MarkRead adds the actor's receipt to every message by someone else that
// lacks one and returns how many changed. Block relations are not consulted.
func (s *Service) MarkRead(ctx context.Context, conversationID, actorID string) (marked int, err error) {
	defer s.deps.TrackOperation("message.mark_read", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return 0, err
	}
	conv, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if err := conversationpolicy.EnsureParticipant(conv, actorID); err != nil {
		return 0, err
	}
	ids, err := s.deps.Messages.ListMessageIDs(ctx, conv.ID)
	if err != nil {
		return 0, contracts.Internal(err)
	}
	now := s.deps.Now()
	for _, id := range ids {
		changed := false
		_, err := s.deps.Messages.UpdateMessage(ctx, id, func(m *models.Message) (bool, error) {
			changed = messagingpolicy.MarkReadBy(m, actorID, now)
			return changed, nil
		})
		if errors.Is(err, contracts.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return marked, contracts.Internal(err)
		}
		if changed {
			marked++
		}
	}
	if marked > 0 {
		s.deps.Emit(models.ConversationTopic(conv.ID), models.EventMessagesRead, map[string]any{
			"conversation_id": conv.ID,
			"user_id":         actorID,
			"count":           marked,
			"read_at":         now,
		})
	}
	return marked, nil
}

func (s *Service) PinMessage(ctx context.Context, conversationID, messageID, actorID string) (models.Conversation, error) {
	return s.setPinned(ctx, "message.pin", conversationID, messageID, actorID, true)
}

func (s *Service) UnpinMessage(ctx context.Context, conversationID, messageID, actorID string) (models.Conversation, error) {
	return s.setPinned(ctx, "message.unpin", conversationID, messageID, actorID, false)
}

func (s *Service) setPinned(ctx context.Context, op, conversationID, messageID, actorID string, pin bool) (conv models.Conversation, err error) {
	defer s.deps.TrackOperation(op, &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return models.Conversation{}, err
	}
	conv, err = s.loadConversation(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if err := conversationpolicy.EnsureCanManage(conv, actorID); err != nil {
		return models.Conversation{}, err
	}
	if conv.Type == models.ConversationTypeDirect {
		if other := conv.OtherParticipant(actorID); other != "" {
			if err := s.deps.Gate.Check(ctx, privacypolicy.CheckBlockOnly, other, actorID); err != nil {
				return models.Conversation{}, err
			}
		}
	}
	messageID = strings.TrimSpace(messageID)
	msg, found, err := s.deps.Messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Conversation{}, contracts.Internal(err)
	}
	switch {
	case found:
		if err := messagingpolicy.EnsureInConversation(msg, conv.ID); err != nil {
			return models.Conversation{}, err
		}
	case pin || !conv.IsPinned(messageID):
		// A deleted message can still be unpinned so dangling pins can be cleared.
		return models.Conversation{}, messagingpolicy.ErrMessageNotFound
	}

	changed := false
	conv, err = s.deps.Conversations.UpdateConversation(ctx, conv.ID, func(c *models.Conversation) (bool, error) {
		if err := conversationpolicy.EnsureCanManage(*c, actorID); err != nil {
			return false, err
		}
		if pin {
			changed = messagingpolicy.AddPin(c, messageID)
		} else {
			changed = messagingpolicy.RemovePin(c, messageID)
		}
		return changed, nil
	})
	if err != nil {
		if errors.Is(err, contracts.ErrRecordNotFound) {
			return models.Conversation{}, conversationpolicy.ErrConversationNotFound
		}
		return models.Conversation{}, contracts.Internal(err)
	}
	if changed {
		eventType := models.EventMessageUnpinned
		if pin {
			eventType = models.EventMessagePinned
		}
		s.deps.Emit(models.ConversationTopic(conv.ID), eventType, map[string]string{
			"conversation_id": conv.ID,
			"message_id":      messageID,
			"actor_id":        actorID,
		})
	}
	return conv, nil
}

// StarMessage does not check that the message exists.
func (s *Service) StarMessage(ctx context.Context, messageID, actorID string) (err error) {
	defer s.deps.TrackOperation("message.star", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return err
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return contracts.ErrInvalidParams
	}
	if err := s.deps.Stars.Star(ctx, models.StarredMessage{UserID: actorID, MessageID: messageID, StarredAt: s.deps.Now()}); err != nil {
		return contracts.Internal(err)
	}
	return nil
}

func (s *Service) UnstarMessage(ctx context.Context, messageID, actorID string) (err error) {
	defer s.deps.TrackOperation("message.unstar", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return err
	}
	if err := s.deps.Stars.Unstar(ctx, actorID, strings.TrimSpace(messageID)); err != nil {
		return contracts.Internal(err)
	}
	return nil
}

func (s *Service) ListStarred(ctx context.Context, actorID string) (out []models.StarredMessage, err error) {
	defer s.deps.TrackOperation("message.list_starred", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return nil, err
	}
	out, err = s.deps.Stars.ListStarred(ctx, actorID)
	if err != nil {
		return nil, contracts.Internal(err)
	}
	return out, nil
}

// ListMessages pages backwards from before (zero means newest) and returns
// the page in chronological order.
func (s *Service) ListMessages(ctx context.Context, conversationID, actorID string, limit int, before time.Time) (out []models.Message, err error) {
	defer s.deps.TrackOperation("message.list", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return nil, err
	}
	conv, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := conversationpolicy.EnsureParticipant(conv, actorID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	out, err = s.deps.Messages.ListMessages(ctx, conv.ID, limit, before)
	if err != nil {
		return nil, contracts.Internal(err)
	}
	return out, nil
}

func (s *Service) loadConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	conv, found, err := s.deps.Conversations.GetConversation(ctx, strings.TrimSpace(conversationID))
	if err != nil {
		return models.Conversation{}, contracts.Internal(err)
	}
	if !found {
		return models.Conversation{}, conversationpolicy.ErrConversationNotFound
	}
	return conv, nil
}

func (s *Service) loadMessage(ctx context.Context, messageID string) (models.Message, error) {
	msg, found, err := s.deps.Messages.GetMessage(ctx, strings.TrimSpace(messageID))
	if err != nil {
		return models.Message{}, contracts.Internal(err)
	}
	if !found {
		return models.Message{}, messagingpolicy.ErrMessageNotFound
	}
	return msg, nil
}

// messageError maps repository misses to the domain sentinel and leaves
// classified errors alone.
func messageError(err error) error {
	if errors.Is(err, contracts.ErrRecordNotFound) {
		return messagingpolicy.ErrMessageNotFound
	}
	return contracts.Internal(err)
}
