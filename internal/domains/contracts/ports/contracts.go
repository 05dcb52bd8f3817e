package ports

import (
	"context"
	"time"

	privacymodel "aim-chat/conversation-core/internal/domains/privacy/model"
	"aim-chat/conversation-core/pkg/models"
)

// ConversationAPI is a transport-neutral conversation management contract.
type ConversationAPI interface {
	CreateConversation(ctx context.Context, actorID string, req models.ConversationCreateRequest) (models.Conversation, error)
	UpdateConversation(ctx context.Context, conversationID, actorID string, req models.ConversationUpdateRequest) (models.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID, actorID string) error
	GetConversation(ctx context.Context, conversationID, actorID string) (models.Conversation, error)
	ListConversations(ctx context.Context, actorID string) ([]models.Conversation, error)
}

// MessagingAPI is a transport-neutral message lifecycle contract.
type MessagingAPI interface {
	SendMessage(ctx context.Context, actorID string, req models.MessageSendRequest) (models.Message, error)
	SendDirectMessage(ctx context.Context, actorID, recipientID string, req models.MessageSendRequest) (models.Message, error)
	SharePost(ctx context.Context, actorID, postID, conversationID, comment string) (models.Message, error)
	EditMessage(ctx context.Context, messageID, actorID, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID, actorID string) error
	ForwardMessage(ctx context.Context, messageID, conversationID, actorID string) (models.Message, error)
	MarkRead(ctx context.Context, conversationID, actorID string) (int, error)
	PinMessage(ctx context.Context, conversationID, messageID, actorID string) (models.Conversation, error)
	UnpinMessage(ctx context.Context, conversationID, messageID, actorID string) (models.Conversation, error)
	StarMessage(ctx context.Context, messageID, actorID string) error
	UnstarMessage(ctx context.Context, messageID, actorID string) error
	ListMessages(ctx context.Context, conversationID, actorID string, limit int, before time.Time) ([]models.Message, error)
	ListStarred(ctx context.Context, actorID string) ([]models.StarredMessage, error)
	ToggleReaction(ctx context.Context, messageID, actorID string, req models.ReactionRequest) (ReactionResult, error)
	RemoveReaction(ctx context.Context, messageID, actorID string) (models.Message, error)
}

// PrivacyAPI exposes read-only access checks.
type PrivacyAPI interface {
	CanAccessProfile(ctx context.Context, viewerID, targetID string) (privacymodel.AccessDecision, error)
}

type NotificationAPI interface {
	ListNotifications(ctx context.Context, actorID string, limit int) ([]models.Notification, error)
}

// ChatService is the full surface served by transport adapters.
type ChatService interface {
	ConversationAPI
	MessagingAPI
	PrivacyAPI
	NotificationAPI
}

type ReactionOutcome string

const (
	ReactionAdded   ReactionOutcome = "added"
	ReactionRemoved ReactionOutcome = "removed"
	ReactionUpdated ReactionOutcome = "updated"
)

type ReactionResult struct {
	Outcome ReactionOutcome `json:"outcome"`
	Message models.Message  `json:"message"`
}

// KindError classifies a failure for the operation boundary. Reason is a
// machine-readable detail such as "blocked" or "friends_only".
type KindError struct {
	Kind   string
	Reason string
	Err    error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return e.Kind
	}
	return e.Err.Error()
}

func (e *KindError) Unwrap() error {
	return e.Err
}
