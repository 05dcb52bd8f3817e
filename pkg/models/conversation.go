package models

import (
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type ConversationType string

const (
	ConversationTypeDirect ConversationType = "direct"
	ConversationTypeGroup  ConversationType = "group"
)

// ParseConversationType accepts only the known conversation types.
func ParseConversationType(raw string) (ConversationType, bool) {
	switch ConversationType(strings.ToLower(strings.TrimSpace(raw))) {
	case ConversationTypeDirect:
		return ConversationTypeDirect, true
	case ConversationTypeGroup:
		return ConversationTypeGroup, true
	default:
		return "", false
	}
}

type Conversation struct {
	ID             string           `json:"id"`
	Type           ConversationType `json:"type"`
	Participants   []string         `json:"participants"`
	Admins         []string         `json:"admins,omitempty"`
	Name           string           `json:"name,omitempty"`
	Avatar         string           `json:"avatar,omitempty"`
	Description    string           `json:"description,omitempty"`
	LastMessageID  string           `json:"last_message_id,omitempty"`
	PinnedMessages []string         `json:"pinned_messages,omitempty"`
	CreatedBy      string           `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (c Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

func (c Conversation) IsAdmin(userID string) bool {
	return slices.Contains(c.Admins, userID)
}

// OtherParticipant returns the counterpart of userID in a direct conversation.
func (c Conversation) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

func (c Conversation) IsPinned(messageID string) bool {
	return slices.Contains(c.PinnedMessages, messageID)
}

type ConversationCreateRequest struct {
	ParticipantIDs []string         `json:"participant_ids"`
	Type           ConversationType `json:"type"`
	Name           string           `json:"name,omitempty"`
	Avatar         string           `json:"avatar,omitempty"`
	Description    string           `json:"description,omitempty"`
}

// ConversationUpdateRequest carries a partial update; nil fields are left untouched.
type ConversationUpdateRequest struct {
	Name         *string  `json:"name,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Avatar       *string  `json:"avatar,omitempty"`
	Participants []string `json:"participants,omitempty"`
	Admins       []string `json:"admins,omitempty"`
}

func (r ConversationUpdateRequest) IsEmpty() bool {
	return r.Name == nil && r.Description == nil && r.Avatar == nil && len(r.Participants) == 0 && len(r.Admins) == 0
}

// NormalizeIDs trims, drops empty entries and removes duplicates while keeping order.
func NormalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ValidUserID reports whether id can be used as a user identity. Ids are
// embedded in storage keys and topics, so separators and control characters
// are rejected.
func ValidUserID(id string) bool {
	if id == "" || strings.TrimSpace(id) != id {
		return false
	}
	for _, r := range id {
		if r == '/' || r == '|' || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// DirectPairKey is the order-independent identity of a direct conversation.
// The first id is length-prefixed so distinct pairs never share a key.
func DirectPairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strconv.Itoa(len(a)) + ":" + a + "|" + b
}

func ConversationTopic(conversationID string) string {
	return "conversation:" + conversationID
}

func UserTopic(userID string) string {
	return "user:" + userID
}
