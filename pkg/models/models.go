package models

import (
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
	MessageTypePost  MessageType = "post"
)

func ParseMessageType(raw string) (MessageType, bool) {
	switch MessageType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MessageTypeText:
		return MessageTypeText, true
	case MessageTypeImage:
		return MessageTypeImage, true
	case MessageTypeFile:
		return MessageTypeFile, true
	case MessageTypePost:
		return MessageTypePost, true
	default:
		return "", false
	}
}

// Attachment is the payload of image and file messages.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// PostRef is the payload of post messages. The post itself lives elsewhere.
type PostRef struct {
	PostID string `json:"post_id"`
}

type Reaction struct {
	UserID        string    `json:"user_id"`
	EmojiCategory string    `json:"emoji_category"`
	EmojiName     string    `json:"emoji_name"`
	ReactedAt     time.Time `json:"reacted_at"`
}

type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// Message is a tagged variant: Attachment is set only for image/file and Post
// only for post messages.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	Content        string        `json:"content"`
	Type           MessageType   `json:"type"`
	Attachment     *Attachment   `json:"attachment,omitempty"`
	Post           *PostRef      `json:"post,omitempty"`
	ReplyTo        string        `json:"reply_to,omitempty"`
	Reactions      []Reaction    `json:"reactions"`
	ReadBy         []ReadReceipt `json:"read_by"`
	Edited         bool          `json:"edited"`
	EditedAt       *time.Time    `json:"edited_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// MessageSendRequest is the flat wire shape accepted from callers.
type MessageSendRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type,omitempty"`
	FileURL        string `json:"file_url,omitempty"`
	FileName       string `json:"file_name,omitempty"`
	ReplyTo        string `json:"reply_to,omitempty"`
	PostID         string `json:"post_id,omitempty"`
}

type ReactionRequest struct {
	EmojiCategory string `json:"emoji_category"`
	EmojiName     string `json:"emoji_name"`
}

type StarredMessage struct {
	UserID    string    `json:"user_id"`
	MessageID string    `json:"message_id"`
	StarredAt time.Time `json:"starred_at"`
}

// UserProfile is the subset of user data the core reads from the directory.
type UserProfile struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Avatar    string   `json:"avatar,omitempty"`
	Following []string `json:"following,omitempty"`
}
