package usecase

import (
	"context"
	"strings"

	"aim-chat/conversation-core/internal/domains/contracts"
	conversationpolicy "aim-chat/conversation-core/internal/domains/conversation/policy"
	messagingpolicy "aim-chat/conversation-core/internal/domains/messaging/policy"
	privacypolicy "aim-chat/conversation-core/internal/domains/privacy/policy"
	"aim-chat/conversation-core/pkg/models"
)

type reactionEvent struct {
	MessageID      string                    `json:"message_id"`
	ConversationID string                    `json:"conversation_id"`
	UserID         string                    `json:"user_id"`
	EmojiCategory  string                    `json:"emoji_category,omitempty"`
	EmojiName      string                    `json:"emoji_name,omitempty"`
	Outcome        contracts.ReactionOutcome `json:"outcome"`
	Reactions      []models.Reaction         `json:"reactions"`
}

// ToggleReaction adds, removes or replaces the actor's single reaction as
// one atomic update of the message document.
func (s *Service) ToggleReaction(ctx context.Context, messageID, actorID string, req models.ReactionRequest) (result contracts.ReactionResult, err error) {
	defer s.deps.TrackOperation("reaction.toggle", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return contracts.ReactionResult{}, err
	}
	req, err = messagingpolicy.ValidateReaction(req)
	if err != nil {
		return contracts.ReactionResult{}, err
	}
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return contracts.ReactionResult{}, err
	}
	conv, err := s.loadConversation(ctx, msg.ConversationID)
	if err != nil {
		return contracts.ReactionResult{}, err
	}
	if err := conversationpolicy.EnsureParticipant(conv, actorID); err != nil {
		return contracts.ReactionResult{}, err
	}
	if msg.SenderID != actorID {
		if err := s.deps.Gate.Check(ctx, privacypolicy.CheckBlockOnly, msg.SenderID, actorID); err != nil {
			return contracts.ReactionResult{}, err
		}
	}

	var outcome contracts.ReactionOutcome
	msg, err = s.deps.Messages.UpdateMessage(ctx, msg.ID, func(m *models.Message) (bool, error) {
		outcome = messagingpolicy.ApplyToggle(m, actorID, req, s.deps.Now())
		return true, nil
	})
	if err != nil {
		return contracts.ReactionResult{}, messageError(err)
	}

	eventType := models.EventReactionAdded
	if outcome == contracts.ReactionRemoved {
		eventType = models.EventReactionRemoved
	}
	s.deps.Emit(models.ConversationTopic(msg.ConversationID), eventType, reactionEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         actorID,
		EmojiCategory:  req.EmojiCategory,
		EmojiName:      req.EmojiName,
		Outcome:        outcome,
		Reactions:      msg.Reactions,
	})
	if outcome == contracts.ReactionAdded && msg.SenderID != actorID {
		s.deps.Notify(models.NotificationRequest{
			ActorID:        actorID,
			RecipientIDs:   []string{msg.SenderID},
			Type:           models.NotificationReaction,
			EntityType:     "message",
			EntityID:       msg.ID,
			ConversationID: msg.ConversationID,
		})
	}
	return contracts.ReactionResult{Outcome: outcome, Message: msg}, nil
}

// RemoveReaction clears the actor's reaction. Having none is not an error.
func (s *Service) RemoveReaction(ctx context.Context, messageID, actorID string) (msg models.Message, err error) {
	defer s.deps.TrackOperation("reaction.remove", &err)()
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return models.Message{}, err
	}
	removed := false
	msg, err = s.deps.Messages.UpdateMessage(ctx, strings.TrimSpace(messageID), func(m *models.Message) (bool, error) {
		removed = messagingpolicy.RemoveReactionsBy(m, actorID)
		return removed, nil
	})
	if err != nil {
		return models.Message{}, messageError(err)
	}
	if removed {
		s.deps.Emit(models.ConversationTopic(msg.ConversationID), models.EventReactionRemoved, reactionEvent{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			UserID:         actorID,
			Outcome:        contracts.ReactionRemoved,
			Reactions:      msg.Reactions,
		})
	}
	return msg, nil
}
