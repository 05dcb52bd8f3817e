package contracts

import (
	"context"
	"time"

	privacymodel "aim-chat/conversation-core/internal/domains/privacy/model"
	"aim-chat/conversation-core/pkg/models"
)

// UserDirectory resolves profile data owned by the user-management subsystem.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (models.UserProfile, bool, error)
}

// PrivacySettingsStore is read-only for the core; the settings subsystem owns writes.
type PrivacySettingsStore interface {
	GetPrivacySettings(ctx context.Context, userID string) (privacymodel.PrivacySettings, bool, error)
}

type ConversationRepository interface {
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, bool, error)
	SaveConversation(ctx context.Context, conv models.Conversation) error
	DeleteConversation(ctx context.Context, conversationID string) (bool, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	FindDirectConversation(ctx context.Context, a, b string) (models.Conversation, bool, error)
	// UpdateConversation applies fn under the per-document lock. fn returning
	// false leaves the stored document untouched.
	UpdateConversation(ctx context.Context, conversationID string, fn func(conv *models.Conversation) (bool, error)) (models.Conversation, error)
	// LockDirectPair serializes direct creation for one unordered pair.
	LockDirectPair(a, b string) func()
}

type MessageRepository interface {
	GetMessage(ctx context.Context, messageID string) (models.Message, bool, error)
	CreateMessage(ctx context.Context, msg models.Message) error
	UpdateMessage(ctx context.Context, messageID string, fn func(msg *models.Message) (bool, error)) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) (bool, error)
	ListMessageIDs(ctx context.Context, conversationID string) ([]string, error)
	ListMessages(ctx context.Context, conversationID string, limit int, before time.Time) ([]models.Message, error)
}

type StarRepository interface {
	Star(ctx context.Context, star models.StarredMessage) error
	Unstar(ctx context.Context, userID, messageID string) error
	ListStarred(ctx context.Context, userID string) ([]models.StarredMessage, error)
}

type NotificationStore interface {
	AppendNotification(ctx context.Context, n models.Notification) error
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
}

// BlobStore turns an uploaded file reference into a stable URL.
type BlobStore interface {
	ResolveURL(ctx context.Context, ref string) (string, error)
}

// RealtimeBroker carries events to live sessions on any instance.
type RealtimeBroker interface {
	Publish(ctx context.Context, evt models.Event) error
}
