package chatservice

import (
	"context"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/internal/domains/conversation"
	"aim-chat/conversation-core/internal/domains/messaging"
	"aim-chat/conversation-core/internal/domains/notification"
	"aim-chat/conversation-core/internal/domains/privacy"
	privacymodel "aim-chat/conversation-core/internal/domains/privacy/model"
	"aim-chat/conversation-core/pkg/models"
)

type chatService struct {
	*conversation.Service
	messages      *messaging.Service
	gate          *privacy.Gate
	notifications *notification.Dispatcher
}

var _ contracts.ChatService = (*chatService)(nil)

func (s *chatService) SendMessage(ctx context.Context, actorID string, req models.MessageSendRequest) (models.Message, error) {
	return s.messages.SendMessage(ctx, actorID, req)
}

func (s *chatService) SendDirectMessage(ctx context.Context, actorID, recipientID string, req models.MessageSendRequest) (models.Message, error) {
	return s.messages.SendDirectMessage(ctx, actorID, recipientID, req)
}

func (s *chatService) SharePost(ctx context.Context, actorID, postID, conversationID, comment string) (models.Message, error) {
	return s.messages.SharePost(ctx, actorID, postID, conversationID, comment)
}

func (s *chatService) EditMessage(ctx context.Context, messageID, actorID, content string) (models.Message, error) {
	return s.messages.EditMessage(ctx, messageID, actorID, content)
}

func (s *chatService) DeleteMessage(ctx context.Context, messageID, actorID string) error {
	return s.messages.DeleteMessage(ctx, messageID, actorID)
}

func (s *chatService) ForwardMessage(ctx context.Context, messageID, conversationID, actorID string) (models.Message, error) {
	return s.messages.ForwardMessage(ctx, messageID, conversationID, actorID)
}

func (s *chatService) MarkRead(ctx context.Context, conversationID, actorID string) (int, error) {
	return s.messages.MarkRead(ctx, conversationID, actorID)
}

func (s *chatService) PinMessage(ctx context.Context, conversationID, messageID, actorID string) (models.Conversation, error) {
	return s.messages.PinMessage(ctx, conversationID, messageID, actorID)
}

func (s *chatService) UnpinMessage(ctx context.Context, conversationID, messageID, actorID string) (models.Conversation, error) {
	return s.messages.UnpinMessage(ctx, conversationID, messageID, actorID)
}

func (s *chatService) StarMessage(ctx context.Context, messageID, actorID string) error {
	return s.messages.StarMessage(ctx, messageID, actorID)
}

func (s *chatService) UnstarMessage(ctx context.Context, messageID, actorID string) error {
	return s.messages.UnstarMessage(ctx, messageID, actorID)
}

func (s *chatService) ListMessages(ctx context.Context, conversationID, actorID string, limit int, before time.Time) ([]models.Message, error) {
	return s.messages.ListMessages(ctx, conversationID, actorID, limit, before)
}

func (s *chatService) ListStarred(ctx context.Context, actorID string) ([]models.StarredMessage, error) {
	return s.messages.ListStarred(ctx, actorID)
}

func (s *chatService) ToggleReaction(ctx context.Context, messageID, actorID string, req models.ReactionRequest) (contracts.ReactionResult, error) {
	return s.messages.ToggleReaction(ctx, messageID, actorID, req)
}

func (s *chatService) RemoveReaction(ctx context.Context, messageID, actorID string) (models.Message, error) {
	return s.messages.RemoveReaction(ctx, messageID, actorID)
}

func (s *chatService) CanAccessProfile(ctx context.Context, viewerID, targetID string) (privacymodel.AccessDecision, error) {
	return s.gate.CanAccessProfile(ctx, viewerID, targetID)
}

func (s *chatService) ListNotifications(ctx context.Context, actorID string, limit int) ([]models.Notification, error) {
	return s.notifications.List(ctx, actorID, limit)
}
