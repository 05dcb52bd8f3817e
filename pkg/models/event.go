package models

import "time"

type EventType string

const (
	EventNewMessage          EventType = "new_message"
	EventMessageEdited       EventType = "message_edited"
	EventMessageDeleted      EventType = "message_deleted"
	EventReactionAdded       EventType = "reaction_added"
	EventReactionRemoved     EventType = "reaction_removed"
	EventMessagesRead        EventType = "messages_read"
	EventConversationUpdated EventType = "conversation_updated"
	EventConversationDeleted EventType = "conversation_deleted"
	EventMessagePinned       EventType = "message_pinned"
	EventMessageUnpinned     EventType = "message_unpinned"
	EventMemberLeft          EventType = "member_left"
)

// MembershipChange is the payload of member_left. Live sessions of UserID
// stop following the conversation topic when they see it.
type MembershipChange struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// Event is pushed to live sessions subscribed to Topic.
type Event struct {
	Type      EventType `json:"type"`
	Topic     string    `json:"topic"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

type NotificationType string

const (
	NotificationMessage    NotificationType = "message"
	NotificationReaction   NotificationType = "reaction"
	NotificationGroupAdded NotificationType = "group_added"
)

type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	SenderID    string           `json:"sender_id"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	EntityType  string           `json:"entity_type"`
	EntityID    string           `json:"entity_id"`
	ActionURL   string           `json:"action_url,omitempty"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationRequest asks the dispatcher to notify every recipient except the actor.
type NotificationRequest struct {
	ActorID        string
	RecipientIDs   []string
	Type           NotificationType
	EntityType     string
	EntityID       string
	ConversationID string
}
