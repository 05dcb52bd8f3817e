package storage

import (
	"context"
	"errors"
	"sort"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/pkg/models"
)

var (
	ErrInvalidConversationID = errors.New("invalid conversation id")
	ErrInvalidParticipantID  = errors.New("invalid participant id")
)

type ConversationStore struct {
	docs *DocumentStore
}

func NewConversationStore(docs *DocumentStore) *ConversationStore {
	return &ConversationStore{docs: docs}
}

func (s *ConversationStore) GetConversation(ctx context.Context, conversationID string) (models.Conversation, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Conversation{}, false, err
	}
	if !validID(conversationID) {
		return models.Conversation{}, false, nil
	}
	var conv models.Conversation
	found, err := s.docs.Get(conversationKey(conversationID), &conv)
	return conv, found, err
}

// SaveConversation writes the document together with its membership and
// direct-pair indexes. Index entries for removed participants are dropped.
func (s *ConversationStore) SaveConversation(ctx context.Context, conv models.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(conv.ID) {
		return ErrInvalidConversationID
	}
	var prev models.Conversation
	found, err := s.docs.Get(conversationKey(conv.ID), &prev)
	if err != nil {
		return err
	}
	if !found {
		prev.ID = conv.ID
	}
	return s.writeWithIndexes(prev, conv)
}

func (s *ConversationStore) writeWithIndexes(prev, next models.Conversation) error {
	for _, p := range next.Participants {
		if !validID(p) {
			return ErrInvalidParticipantID
		}
	}
	return s.docs.Apply(func(b *Batch) error {
		if err := b.Put(conversationKey(next.ID), next); err != nil {
			return err
		}
		for _, p := range prev.Participants {
			if !next.HasParticipant(p) {
				if err := b.Delete(memberIndexKey(p, next.ID)); err != nil {
					return err
				}
			}
		}
		for _, p := range next.Participants {
			if err := b.PutIndex(memberIndexKey(p, next.ID)); err != nil {
				return err
			}
		}
		if next.Type == models.ConversationTypeDirect && len(next.Participants) == 2 {
			return b.Put(directIndexKey(next.Participants[0], next.Participants[1]), next.ID)
		}
		return nil
	})
}

func (s *ConversationStore) UpdateConversation(ctx context.Context, conversationID string, fn func(conv *models.Conversation) (bool, error)) (models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return models.Conversation{}, err
	}
	if !validID(conversationID) {
		return models.Conversation{}, contracts.ErrRecordNotFound
	}
	unlock := s.docs.Lock(conversationKey(conversationID))
	defer unlock()

	var conv models.Conversation
	found, err := s.docs.Get(conversationKey(conversationID), &conv)
	if err != nil {
		return models.Conversation{}, err
	}
	if !found {
		return models.Conversation{}, contracts.ErrRecordNotFound
	}
	prev := conv
	prev.Participants = append([]string(nil), conv.Participants...)
	write, err := fn(&conv)
	if err != nil {
		return conv, err
	}
	if write {
		if err := s.writeWithIndexes(prev, conv); err != nil {
			return conv, err
		}
	}
	return conv, nil
}

// DeleteConversation hard-deletes the conversation, its indexes and every
// message it contains.
func (s *ConversationStore) DeleteConversation(ctx context.Context, conversationID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !validID(conversationID) {
		return false, nil
	}
	unlock := s.docs.Lock(conversationKey(conversationID))
	defer unlock()

	var conv models.Conversation
	found, err := s.docs.Get(conversationKey(conversationID), &conv)
	if err != nil || !found {
		return false, err
	}
	indexKeys := make([]string, 0)
	if err := s.docs.ScanKeys(messageIndexConversationPrefix(conversationID), false, func(key string) bool {
		indexKeys = append(indexKeys, key)
		return true
	}); err != nil {
		return false, err
	}
	err = s.docs.Apply(func(b *Batch) error {
		if err := b.Delete(conversationKey(conversationID)); err != nil {
			return err
		}
		for _, p := range conv.Participants {
			if err := b.Delete(memberIndexKey(p, conversationID)); err != nil {
				return err
			}
		}
		if conv.Type == models.ConversationTypeDirect && len(conv.Participants) == 2 {
			if err := b.Delete(directIndexKey(conv.Participants[0], conv.Participants[1])); err != nil {
				return err
			}
		}
		for _, key := range indexKeys {
			if err := b.Delete(key); err != nil {
				return err
			}
			if err := b.Delete(messageKey(messageIDFromIndexKey(key))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListConversationsForUser returns the user's conversations, most recently
// updated first.
func (s *ConversationStore) ListConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validID(userID) {
		return []models.Conversation{}, nil
	}
	ids := make([]string, 0)
	if err := s.docs.ScanKeys(memberIndexUserPrefix(userID), false, func(key string) bool {
		ids = append(ids, lastSegment(key))
		return true
	}); err != nil {
		return nil, err
	}
	out := make([]models.Conversation, 0, len(ids))
	for _, id := range ids {
		var conv models.Conversation
		found, err := s.docs.Get(conversationKey(id), &conv)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, conv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *ConversationStore) FindDirectConversation(ctx context.Context, a, b string) (models.Conversation, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Conversation{}, false, err
	}
	if !validID(a) || !validID(b) {
		return models.Conversation{}, false, nil
	}
	var id string
	found, err := s.docs.Get(directIndexKey(a, b), &id)
	if err != nil || !found {
		return models.Conversation{}, false, err
	}
	return s.GetConversation(ctx, id)
}

func (s *ConversationStore) LockDirectPair(a, b string) func() {
	return s.docs.Lock(directIndexKey(a, b))
}
