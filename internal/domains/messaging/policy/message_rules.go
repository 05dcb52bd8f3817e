package policy

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/pkg/models"
)

const MaxContentLength = 4000

var (
	ErrMessageNotFound          = contracts.NewError(contracts.KindNotFound, "message_not_found", "message not found")
	ErrNotSender                = contracts.NewError(contracts.KindForbidden, "not_sender", "only the sender may change this message")
	ErrContentRequired          = contracts.NewError(contracts.KindBadRequest, "content_required", "message content is required")
	ErrContentTooLong           = contracts.NewError(contracts.KindBadRequest, "content_too_long", "message content is too long")
	ErrInvalidMessageType       = contracts.NewError(contracts.KindBadRequest, "invalid_message_type", "unknown message type")
	ErrFileRequired             = contracts.NewError(contracts.KindBadRequest, "file_required", "image and file messages need a file")
	ErrPostRequired             = contracts.NewError(contracts.KindBadRequest, "post_required", "post messages need a post id")
	ErrInvalidReply             = contracts.NewError(contracts.KindBadRequest, "invalid_reply", "reply target must be a message in the same conversation")
	ErrMessageNotInConversation = contracts.NewError(contracts.KindBadRequest, "message_not_in_conversation", "message does not belong to the conversation")
	ErrRateLimited              = contracts.NewError(contracts.KindForbidden, "rate_limited", "too many messages, slow down")
	ErrRecipientRequired        = contracts.NewError(contracts.KindBadRequest, "recipient_required", "recipient is required")
)

// SendInput is a validated send request. FileRef is the caller's upload
// reference; the service resolves it to a URL before persisting.
type SendInput struct {
	Type     models.MessageType
	Content  string
	FileRef  string
	FileName string
	PostID   string
	ReplyTo  string
}

func ValidateSendInput(req models.MessageSendRequest) (SendInput, error) {
	msgType, ok := models.ParseMessageType(req.MessageType)
	if !ok {
		return SendInput{}, ErrInvalidMessageType
	}
	in := SendInput{
		Type:     msgType,
		Content:  strings.TrimSpace(req.Content),
		FileRef:  strings.TrimSpace(req.FileURL),
		FileName: strings.TrimSpace(req.FileName),
		PostID:   strings.TrimSpace(req.PostID),
		ReplyTo:  strings.TrimSpace(req.ReplyTo),
	}
	if err := ValidateContent(in.Content, msgType == models.MessageTypeText); err != nil {
		return SendInput{}, err
	}
	switch msgType {
	case models.MessageTypeImage, models.MessageTypeFile:
		if in.FileRef == "" {
			return SendInput{}, ErrFileRequired
		}
	case models.MessageTypePost:
		if in.PostID == "" {
			return SendInput{}, ErrPostRequired
		}
	}
	return in, nil
}

// ValidateContent enforces the length cap; required applies to text bodies.
func ValidateContent(content string, required bool) error {
	if required && content == "" {
		return ErrContentRequired
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// NewMessage builds a fresh message. fileURL is the resolved attachment URL.
func NewMessage(id, conversationID, senderID string, in SendInput, fileURL string, now time.Time) models.Message {
	msg := models.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        in.Content,
		Type:           in.Type,
		ReplyTo:        in.ReplyTo,
		Reactions:      []models.Reaction{},
		ReadBy:         []models.ReadReceipt{},
		CreatedAt:      now,
	}
	switch in.Type {
	case models.MessageTypeImage, models.MessageTypeFile:
		msg.Attachment = &models.Attachment{URL: fileURL, Name: in.FileName}
	case models.MessageTypePost:
		msg.Post = &models.PostRef{PostID: in.PostID}
	}
	return msg
}

// ForwardCopy keeps the body and variant payload; everything tied to the
// original author or thread is reset.
func ForwardCopy(src models.Message, id, targetConversationID, actorID string, now time.Time) models.Message {
	out := models.Message{
		ID:             id,
		ConversationID: targetConversationID,
		SenderID:       actorID,
		Content:        src.Content,
		Type:           src.Type,
		Reactions:      []models.Reaction{},
		ReadBy:         []models.ReadReceipt{},
		CreatedAt:      now,
	}
	if src.Attachment != nil {
		a := *src.Attachment
		out.Attachment = &a
	}
	if src.Post != nil {
		p := *src.Post
		out.Post = &p
	}
	return out
}

func EnsureSender(msg models.Message, actorID string) error {
	if msg.SenderID != actorID {
		return ErrNotSender
	}
	return nil
}

func EnsureInConversation(msg models.Message, conversationID string) error {
	if msg.ConversationID != conversationID {
		return ErrMessageNotInConversation
	}
	return nil
}

func ApplyEdit(msg *models.Message, content string, now time.Time) {
	msg.Content = content
	msg.Edited = true
	editedAt := now
	msg.EditedAt = &editedAt
}

// MarkReadBy appends a receipt for userID unless the user authored the
// message or already has one.
func MarkReadBy(msg *models.Message, userID string, now time.Time) bool {
	if msg.SenderID == userID {
		return false
	}
	ix := indexByUser(msg.ReadBy, receiptUser)
	if _, ok := ix.get(userID); ok {
		return false
	}
	ix.put(userID, models.ReadReceipt{UserID: userID, ReadAt: now})
	msg.ReadBy = ix.list()
	return true
}

func AddPin(conv *models.Conversation, messageID string) bool {
	if conv.IsPinned(messageID) {
		return false
	}
	conv.PinnedMessages = append(conv.PinnedMessages, messageID)
	return true
}

func RemovePin(conv *models.Conversation, messageID string) bool {
	if !conv.IsPinned(messageID) {
		return false
	}
	conv.PinnedMessages = slices.DeleteFunc(conv.PinnedMessages, func(id string) bool { return id == messageID })
	return true
}
