package storage

import (
	"context"
	"errors"
	"slices"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/pkg/models"
)

var ErrMessageIDConflict = errors.New("message id conflict")
var ErrInvalidMessageID = errors.New("invalid message id")

type MessageStore struct {
	docs *DocumentStore
}

func NewMessageStore(docs *DocumentStore) *MessageStore {
	return &MessageStore{docs: docs}
}

func (s *MessageStore) GetMessage(ctx context.Context, messageID string) (models.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, false, err
	}
	if !validID(messageID) {
		return models.Message{}, false, nil
	}
	var msg models.Message
	found, err := s.docs.Get(messageKey(messageID), &msg)
	return msg, found, err
}

// CreateMessage stores a new message and its order index. An existing
// message with the same ID is a conflict.
func (s *MessageStore) CreateMessage(ctx context.Context, msg models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(msg.ID) || !validID(msg.ConversationID) {
		return ErrInvalidMessageID
	}
	unlock := s.docs.Lock(messageKey(msg.ID))
	defer unlock()

	exists, err := s.docs.Has(messageKey(msg.ID))
	if err != nil {
		return err
	}
	if exists {
		return ErrMessageIDConflict
	}
	return s.docs.Apply(func(b *Batch) error {
		if err := b.Put(messageKey(msg.ID), msg); err != nil {
			return err
		}
		return b.PutIndex(messageIndexKey(msg.ConversationID, msg.CreatedAt, msg.ID))
	})
}

// UpdateMessage runs fn as one atomic read-modify-write on the message.
func (s *MessageStore) UpdateMessage(ctx context.Context, messageID string, fn func(msg *models.Message) (bool, error)) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	if !validID(messageID) {
		return models.Message{}, contracts.ErrRecordNotFound
	}
	msg, found, err := UpdateDoc(s.docs, messageKey(messageID), func(doc *models.Message, found bool) (bool, error) {
		if !found {
			return false, nil
		}
		return fn(doc)
	})
	if err != nil {
		return msg, err
	}
	if !found {
		return models.Message{}, contracts.ErrRecordNotFound
	}
	return msg, nil
}

func (s *MessageStore) DeleteMessage(ctx context.Context, messageID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !validID(messageID) {
		return false, nil
	}
	unlock := s.docs.Lock(messageKey(messageID))
	defer unlock()

	var msg models.Message
	found, err := s.docs.Get(messageKey(messageID), &msg)
	if err != nil || !found {
		return false, err
	}
	err = s.docs.Apply(func(b *Batch) error {
		if err := b.Delete(messageKey(messageID)); err != nil {
			return err
		}
		return b.Delete(messageIndexKey(msg.ConversationID, msg.CreatedAt, msg.ID))
	})
	return err == nil, err
}

// ListMessageIDs returns every message id in the conversation, oldest first.
func (s *MessageStore) ListMessageIDs(ctx context.Context, conversationID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	err := s.docs.ScanKeys(messageIndexConversationPrefix(conversationID), false, func(key string) bool {
		ids = append(ids, messageIDFromIndexKey(key))
		return true
	})
	return ids, err
}

// ListMessages returns up to limit messages created strictly before the
// cursor (zero means newest), in chronological order.
func (s *MessageStore) ListMessages(ctx context.Context, conversationID string, limit int, before time.Time) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cursor := ""
	if !before.IsZero() {
		cursor = timestampSegment(before)
	}
	ids := make([]string, 0)
	err := s.docs.ScanKeys(messageIndexConversationPrefix(conversationID), true, func(key string) bool {
		seg := lastSegment(key)
		if cursor != "" && seg[:min(len(seg), timestampKeyPadding)] >= cursor {
			return true
		}
		ids = append(ids, messageIDFromIndexKey(key))
		return limit <= 0 || len(ids) < limit
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		var msg models.Message
		found, err := s.docs.Get(messageKey(id), &msg)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, msg)
		}
	}
	slices.Reverse(out)
	return out, nil
}
