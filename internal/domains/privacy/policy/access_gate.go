package policy

import (
	"aim-chat/conversation-core/internal/domains/contracts"
	privacymodel "aim-chat/conversation-core/internal/domains/privacy/model"
)

// CheckMode selects which rule set a caller runs before crossing a
// social-graph boundary. Callers pass it explicitly so that direct delivery
// and group membership keep their distinct semantics.
type CheckMode string

const (
	// CheckDirectDelivery runs the full delivery policy: block, then tier.
	CheckDirectDelivery CheckMode = "direct_delivery"
	// CheckBlockOnly ignores the messaging tier and denies only on a block.
	CheckBlockOnly CheckMode = "block_only"
)

// Party is one side of an access evaluation. Settings is nil when the user
// has no privacy record.
type Party struct {
	ID        string
	Settings  *privacymodel.PrivacySettings
	Following []string
}

func (p Party) follows(userID string) bool {
	for _, id := range p.Following {
		if id == userID {
			return true
		}
	}
	return false
}

func (p Party) blocks(userID string) bool {
	return p.Settings != nil && p.Settings.HasBlocked(userID)
}

// MutuallyBlocked is true when either side has the other in its block list.
func MutuallyBlocked(a, b Party) bool {
	return a.blocks(b.ID) || b.blocks(a.ID)
}

// EvaluateDelivery decides whether sender may deliver a message to recipient:
// block (either direction) > recipient tier.
func EvaluateDelivery(recipient, sender Party) privacymodel.AccessDecision {
	if MutuallyBlocked(recipient, sender) {
		return privacymodel.Deny(privacymodel.ReasonBlocked)
	}
	if recipient.Settings == nil {
		return privacymodel.Allow()
	}
	switch privacymodel.NormalizePrivacySettings(*recipient.Settings).AllowMessagesFrom {
	case privacymodel.MessagingNone:
		return privacymodel.Deny(privacymodel.ReasonMessagesDisabled)
	case privacymodel.MessagingFriends:
		if sender.follows(recipient.ID) && recipient.follows(sender.ID) {
			return privacymodel.Allow()
		}
		return privacymodel.Deny(privacymodel.ReasonFriendsOnly)
	default:
		return privacymodel.Allow()
	}
}

// EvaluateBlockOnly is the membership check used when adding group
// participants. The messaging tier is deliberately not consulted.
func EvaluateBlockOnly(a, b Party) privacymodel.AccessDecision {
	if MutuallyBlocked(a, b) {
		return privacymodel.Deny(privacymodel.ReasonBlocked)
	}
	return privacymodel.Allow()
}

// Evaluate dispatches to the rule set named by mode.
func Evaluate(mode CheckMode, recipient, sender Party) privacymodel.AccessDecision {
	if mode == CheckBlockOnly {
		return EvaluateBlockOnly(recipient, sender)
	}
	return EvaluateDelivery(recipient, sender)
}

// EvaluateProfileAccess decides whether viewer may see target's profile and
// follow graph. An empty viewer ID is an anonymous caller, which is denied
// for every target that has a privacy record, including public profiles.
func EvaluateProfileAccess(viewer, target Party) privacymodel.AccessDecision {
	if target.Settings == nil {
		return privacymodel.Allow()
	}
	if target.Settings.IsDeactivated {
		return privacymodel.Deny(privacymodel.ReasonDeactivated)
	}
	if viewer.ID == "" {
		return privacymodel.Deny(privacymodel.ReasonAuthRequired)
	}
	if MutuallyBlocked(viewer, target) {
		return privacymodel.Deny(privacymodel.ReasonBlocked)
	}
	return privacymodel.Allow()
}

// ShouldNotify defaults to true when no record or preference exists.
func ShouldNotify(recipient *privacymodel.PrivacySettings, eventType string) bool {
	if recipient == nil {
		return true
	}
	return recipient.WantsNotification(eventType)
}

var (
	ErrBlocked           = contracts.NewError(contracts.KindForbidden, string(privacymodel.ReasonBlocked), "users have blocked each other")
	ErrFriendsOnly       = contracts.NewError(contracts.KindForbidden, string(privacymodel.ReasonFriendsOnly), "recipient accepts messages from friends only")
	ErrMessagesDisabled  = contracts.NewError(contracts.KindForbidden, string(privacymodel.ReasonMessagesDisabled), "recipient does not accept messages")
	ErrDeactivated       = contracts.NewError(contracts.KindForbidden, string(privacymodel.ReasonDeactivated), "account is deactivated")
	ErrAuthRequired      = contracts.NewError(contracts.KindForbidden, string(privacymodel.ReasonAuthRequired), "profile requires authentication")
	ErrProfileRestricted = contracts.NewError(contracts.KindForbidden, string(privacymodel.ReasonProfileRestricted), "profile is not accessible")
)

// DecisionError maps a denied decision to its sentinel. Allowed decisions map to nil.
func DecisionError(decision privacymodel.AccessDecision) error {
	if decision.Allowed {
		return nil
	}
	switch decision.Reason {
	case privacymodel.ReasonBlocked:
		return ErrBlocked
	case privacymodel.ReasonFriendsOnly:
		return ErrFriendsOnly
	case privacymodel.ReasonMessagesDisabled:
		return ErrMessagesDisabled
	case privacymodel.ReasonDeactivated:
		return ErrDeactivated
	case privacymodel.ReasonAuthRequired:
		return ErrAuthRequired
	default:
		return ErrProfileRestricted
	}
}
