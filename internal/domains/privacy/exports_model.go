package privacy

import privacymodel "aim-chat/conversation-core/internal/domains/privacy/model"

type MessagingTier = privacymodel.MessagingTier
type ProfileVisibility = privacymodel.ProfileVisibility
type PrivacySettings = privacymodel.PrivacySettings
type DenyReason = privacymodel.DenyReason
type AccessDecision = privacymodel.AccessDecision

const (
	MessagingEveryone = privacymodel.MessagingEveryone
	MessagingFriends  = privacymodel.MessagingFriends
	MessagingNone     = privacymodel.MessagingNone

	ProfilePublic  = privacymodel.ProfilePublic
	ProfileFriends = privacymodel.ProfileFriends
	ProfilePrivate = privacymodel.ProfilePrivate
)

const (
	ReasonBlocked          = privacymodel.ReasonBlocked
	ReasonFriendsOnly      = privacymodel.ReasonFriendsOnly
	ReasonMessagesDisabled = privacymodel.ReasonMessagesDisabled
	ReasonDeactivated      = privacymodel.ReasonDeactivated
	ReasonAuthRequired     = privacymodel.ReasonAuthRequired
)

const DefaultMessagingTier = privacymodel.DefaultMessagingTier

var ErrInvalidMessagingTier = privacymodel.ErrInvalidMessagingTier

func DefaultPrivacySettings() PrivacySettings {
	return privacymodel.DefaultPrivacySettings()
}

func NormalizePrivacySettings(in PrivacySettings) PrivacySettings {
	return privacymodel.NormalizePrivacySettings(in)
}

func ParseMessagingTier(raw string) (MessagingTier, error) {
	return privacymodel.ParseMessagingTier(raw)
}
