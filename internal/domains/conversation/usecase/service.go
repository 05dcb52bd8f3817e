package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	conversationpolicy "aim-chat/conversation-core/internal/domains/conversation/policy"
	privacypolicy "aim-chat/conversation-core/internal/domains/privacy/policy"
	"aim-chat/conversation-core/pkg/models"
)

// AccessChecker is the access gate as seen by the conversation service.
type AccessChecker interface {
	Check(ctx context.Context, mode privacypolicy.CheckMode, recipientID, senderID string) error
}

type ServiceDeps struct {
	Conversations contracts.ConversationRepository
	Gate          AccessChecker

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

func (s *Service) CreateConversation(ctx context.Context, actorID string, req models.ConversationCreateRequest) (conv models.Conversation, err error) {
	defer s.deps.TrackOperation("conversation.create", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return models.Conversation{}, err
	}
	in, err := conversationpolicy.ValidateCreate(actorID, req)
	if err != nil {
		return models.Conversation{}, err
	}
	if in.Type == models.ConversationTypeDirect {
		return s.createDirect(ctx, actorID, in.Others[0])
	}
	return s.createGroup(ctx, actorID, in)
}

// GetOrCreateDirect returns the direct conversation between the pair,
// creating it after the delivery check when none exists.
func (s *Service) GetOrCreateDirect(ctx context.Context, actorID, otherID string) (models.Conversation, error) {
	otherID = strings.TrimSpace(otherID)
	if otherID == "" || otherID == actorID {
		return models.Conversation{}, conversationpolicy.ErrDirectParticipants
	}
	if !models.ValidUserID(otherID) {
		return models.Conversation{}, conversationpolicy.ErrInvalidParticipant
	}
	return s.createDirect(ctx, actorID, otherID)
}

func (s *Service) createDirect(ctx context.Context, actorID, otherID string) (models.Conversation, error) {
	if err := s.deps.Gate.Check(ctx, privacypolicy.CheckDirectDelivery, otherID, actorID); err != nil {
		return models.Conversation{}, err
	}
	unlock := s.deps.Conversations.LockDirectPair(actorID, otherID)
	defer unlock()

	existing, found, err := s.deps.Conversations.FindDirectConversation(ctx, actorID, otherID)
	if err != nil {
		return models.Conversation{}, contracts.Internal(err)
	}
	if found {
		return existing, nil
	}
	id, err := s.deps.GenerateID("conv")
	if err != nil {
		return models.Conversation{}, contracts.Internal(err)
	}
	conv := conversationpolicy.NewDirect(id, actorID, otherID, s.deps.Now())
	if err := s.deps.Conversations.SaveConversation(ctx, conv); err != nil {
		return models.Conversation{}, contracts.Internal(err)
	}
	s.deps.Logger.Info("conversation created", "conversation_id", conv.ID, "actor_id", actorID, "type", string(conv.Type))
	s.announce(conv, conv.Participants)
	return conv, nil
}

func (s *Service) createGroup(ctx context.Context, actorID string, in conversationpolicy.CreateInput) (models.Conversation, error) {
	for _, candidate := range in.Others {
		if err := s.deps.Gate.Check(ctx, privacypolicy.CheckBlockOnly, candidate, actorID); err != nil {
			return models.Conversation{}, err
		}
	}
	id, err := s.deps.GenerateID("conv")
	if err != nil {
		return models.Conversation{}, contracts.Internal(err)
	}
	conv := conversationpolicy.NewGroup(id, actorID, in, s.deps.Now())
	if err := s.deps.Conversations.SaveConversation(ctx, conv); err != nil {
		return models.Conversation{}, contracts.Internal(err)
	}
	s.deps.Logger.Info("conversation created", "conversation_id", conv.ID, "actor_id", actorID, "type", string(conv.Type), "members", len(conv.Participants))
	s.announce(conv, conv.Participants)
	s.notifyAdded(conv, actorID, in.Others)
	return conv, nil
}

func (s *Service) UpdateConversation(ctx context.Context, conversationID, actorID string, req models.ConversationUpdateRequest) (conv models.Conversation, err error) {
	defer s.deps.TrackOperation("conversation.update", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return models.Conversation{}, err
	}
	current, found, err := s.deps.Conversations.GetConversation(ctx, strings.TrimSpace(conversationID))
	if err != nil {
		return models.Conversation{}, contracts.Internal(err)
	}
	if !found {
		return models.Conversation{}, conversationpolicy.ErrUpdateTargetMissing
	}
	if err := conversationpolicy.EnsureCanManage(current, actorID); err != nil {
		return models.Conversation{}, err
	}
	if err := conversationpolicy.ValidateUpdate(current, req); err != nil {
		return models.Conversation{}, err
	}
	added := conversationpolicy.NewParticipants(current, req.Participants)
	for _, candidate := range added {
		if err := s.deps.Gate.Check(ctx, privacypolicy.CheckBlockOnly, candidate, actorID); err != nil {
			return models.Conversation{}, err
		}
	}

	conv, err = s.deps.Conversations.UpdateConversation(ctx, current.ID, func(c *models.Conversation) (bool, error) {
		// Membership may have changed since the first read.
		if err := conversationpolicy.EnsureCanManage(*c, actorID); err != nil {
			return false, err
		}
		return true, conversationpolicy.ApplyUpdate(c, req, s.deps.Now())
	})
	if err != nil {
		if errors.Is(err, contracts.ErrRecordNotFound) {
			return models.Conversation{}, conversationpolicy.ErrUpdateTargetMissing
		}
		return models.Conversation{}, contracts.Internal(err)
	}
	s.deps.Emit(models.ConversationTopic(conv.ID), models.EventConversationUpdated, conv)
	if len(added) > 0 {
		s.announce(conv, added)
		s.notifyAdded(conv, actorID, added)
	}
	return conv, nil
}

func (s *Service) DeleteConversation(ctx context.Context, conversationID, actorID string) (err error) {
	defer s.deps.TrackOperation("conversation.delete", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return err
	}
	conv, err := s.load(ctx, conversationID)
	if err != nil {
		return err
	}
	if err := conversationpolicy.EnsureParticipant(conv, actorID); err != nil {
		return err
	}
	if conv.Type == models.ConversationTypeDirect {
		return s.hardDelete(ctx, conv, actorID)
	}

	var empty bool
	updated, err := s.deps.Conversations.UpdateConversation(ctx, conv.ID, func(c *models.Conversation) (bool, error) {
		if err := conversationpolicy.EnsureParticipant(*c, actorID); err != nil {
			return false, err
		}
		empty = conversationpolicy.RemoveMember(c, actorID)
		c.UpdatedAt = s.deps.Now()
		return !empty, nil
	})
	if err != nil {
		if errors.Is(err, contracts.ErrRecordNotFound) {
			return conversationpolicy.ErrConversationNotFound
		}
		return contracts.Internal(err)
	}
	if empty {
		return s.hardDelete(ctx, conv, actorID)
	}
	s.deps.Logger.Info("conversation member left", "conversation_id", conv.ID, "actor_id", actorID)
	s.deps.Emit(models.ConversationTopic(conv.ID), models.EventMemberLeft, models.MembershipChange{ConversationID: conv.ID, UserID: actorID})
	s.deps.Emit(models.ConversationTopic(conv.ID), models.EventConversationUpdated, updated)
	return nil
}

func (s *Service) hardDelete(ctx context.Context, conv models.Conversation, actorID string) error {
	if _, err := s.deps.Conversations.DeleteConversation(ctx, conv.ID); err != nil {
		return contracts.Internal(err)
	}
	s.deps.Logger.Info("conversation deleted", "conversation_id", conv.ID, "actor_id", actorID)
	payload := map[string]string{"conversation_id": conv.ID, "deleted_by": actorID}
	s.deps.Emit(models.ConversationTopic(conv.ID), models.EventConversationDeleted, payload)
	for _, p := range conv.Participants {
		s.deps.Emit(models.UserTopic(p), models.EventConversationDeleted, payload)
	}
	return nil
}

func (s *Service) GetConversation(ctx context.Context, conversationID, actorID string) (conv models.Conversation, err error) {
	defer s.deps.TrackOperation("conversation.get", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return models.Conversation{}, err
	}
	conv, err = s.load(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if err := conversationpolicy.EnsureParticipant(conv, actorID); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context, actorID string) (out []models.Conversation, err error) {
	defer s.deps.TrackOperation("conversation.list", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return nil, err
	}
	out, err = s.deps.Conversations.ListConversationsForUser(ctx, actorID)
	if err != nil {
		return nil, contracts.Internal(err)
	}
	return out, nil
}

// AuthorizeSubscription lets a live session follow a conversation topic.
func (s *Service) AuthorizeSubscription(ctx context.Context, userID, conversationID string) error {
	conv, err := s.load(ctx, conversationID)
	if err != nil {
		return err
	}
	return conversationpolicy.EnsureParticipant(conv, userID)
}

func (s *Service) load(ctx context.Context, conversationID string) (models.Conversation, error) {
	conv, found, err := s.deps.Conversations.GetConversation(ctx, strings.TrimSpace(conversationID))
	if err != nil {
		return models.Conversation{}, contracts.Internal(err)
	}
	if !found {
		return models.Conversation{}, conversationpolicy.ErrConversationNotFound
	}
	return conv, nil
}

// announce tells users' own sessions about a conversation they just joined,
// since they are not yet subscribed to its topic.
func (s *Service) announce(conv models.Conversation, userIDs []string) {
	for _, id := range userIDs {
		s.deps.Emit(models.UserTopic(id), models.EventConversationUpdated, conv)
	}
}

func (s *Service) notifyAdded(conv models.Conversation, actorID string, added []string) {
	if len(added) == 0 {
		return
	}
	s.deps.Notify(models.NotificationRequest{
		ActorID:        actorID,
		RecipientIDs:   added,
		Type:           models.NotificationGroupAdded,
		EntityType:     "conversation",
		EntityID:       conv.ID,
		ConversationID: conv.ID,
	})
}
