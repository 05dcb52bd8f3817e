package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// MessagingTier defines which senders may deliver messages to a user.
type MessagingTier string
type ProfileVisibility string

const (
	MessagingEveryone MessagingTier = "everyone"
	MessagingFriends  MessagingTier = "friends"
	MessagingNone     MessagingTier = "none"

	ProfilePublic  ProfileVisibility = "public"
	ProfileFriends ProfileVisibility = "friends"
	ProfilePrivate ProfileVisibility = "private"
)

const DefaultMessagingTier = MessagingEveryone
const DefaultProfileVisibility = ProfilePublic

var ErrInvalidMessagingTier = errors.New("invalid messaging tier")
var ErrInvalidProfileVisibility = errors.New("invalid profile visibility")

// PrivacySettings is owned by the settings subsystem; the core only reads it.
// BlockedUsers is stored one-sided; symmetry is applied by the access policy.
type PrivacySettings struct {
	UserID                  string            `json:"user_id"`
	AllowMessagesFrom       MessagingTier     `json:"allow_messages_from"`
	ProfileVisibility       ProfileVisibility `json:"profile_visibility"`
	BlockedUsers            []string          `json:"blocked_users,omitempty"`
	NotificationPreferences map[string]bool   `json:"notification_preferences,omitempty"`
	IsDeactivated           bool              `json:"is_deactivated"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

// DenyReason is a machine-readable explanation for a denied access decision.
type DenyReason string

const (
	ReasonNone              DenyReason = ""
	ReasonBlocked           DenyReason = "blocked"
	ReasonFriendsOnly       DenyReason = "friends_only"
	ReasonMessagesDisabled  DenyReason = "messages_disabled"
	ReasonDeactivated       DenyReason = "deactivated"
	ReasonAuthRequired      DenyReason = "auth_required"
	ReasonProfileRestricted DenyReason = "profile_restricted"
)

type AccessDecision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
}

func Allow() AccessDecision {
	return AccessDecision{Allowed: true}
}

func Deny(reason DenyReason) AccessDecision {
	return AccessDecision{Allowed: false, Reason: reason}
}

func DefaultPrivacySettings() PrivacySettings {
	return PrivacySettings{
		AllowMessagesFrom: DefaultMessagingTier,
		ProfileVisibility: DefaultProfileVisibility,
	}
}

func NormalizePrivacySettings(in PrivacySettings) PrivacySettings {
	out := in
	out.UserID = strings.TrimSpace(in.UserID)
	if tier, err := ParseMessagingTier(string(in.AllowMessagesFrom)); err == nil {
		out.AllowMessagesFrom = tier
	} else {
		out.AllowMessagesFrom = DefaultMessagingTier
	}
	if vis, err := ParseProfileVisibility(string(in.ProfileVisibility)); err == nil {
		out.ProfileVisibility = vis
	} else {
		out.ProfileVisibility = DefaultProfileVisibility
	}
	out.BlockedUsers = normalizeBlocked(in.BlockedUsers)
	return out
}

func ParseMessagingTier(raw string) (MessagingTier, error) {
	switch MessagingTier(strings.ToLower(strings.TrimSpace(raw))) {
	case MessagingEveryone:
		return MessagingEveryone, nil
	case MessagingFriends:
		return MessagingFriends, nil
	case MessagingNone:
		return MessagingNone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMessagingTier, raw)
	}
}

func ParseProfileVisibility(raw string) (ProfileVisibility, error) {
	switch ProfileVisibility(strings.ToLower(strings.TrimSpace(raw))) {
	case ProfilePublic:
		return ProfilePublic, nil
	case ProfileFriends:
		return ProfileFriends, nil
	case ProfilePrivate:
		return ProfilePrivate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidProfileVisibility, raw)
	}
}

func (s PrivacySettings) HasBlocked(userID string) bool {
	return slices.Contains(s.BlockedUsers, strings.TrimSpace(userID))
}

// WantsNotification defaults to true when the preference is unset.
func (s PrivacySettings) WantsNotification(eventType string) bool {
	enabled, ok := s.NotificationPreferences[eventType]
	if !ok {
		return true
	}
	return enabled
}

func normalizeBlocked(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
