package privacy

import (
	privacypolicy "aim-chat/conversation-core/internal/domains/privacy/policy"
)

type CheckMode = privacypolicy.CheckMode
type Party = privacypolicy.Party

const (
	CheckDirectDelivery = privacypolicy.CheckDirectDelivery
	CheckBlockOnly      = privacypolicy.CheckBlockOnly
)

var (
	ErrBlocked          = privacypolicy.ErrBlocked
	ErrFriendsOnly      = privacypolicy.ErrFriendsOnly
	ErrMessagesDisabled = privacypolicy.ErrMessagesDisabled
	ErrDeactivated      = privacypolicy.ErrDeactivated
	ErrAuthRequired     = privacypolicy.ErrAuthRequired
)

func EvaluateDelivery(recipient, sender Party) AccessDecision {
	return privacypolicy.EvaluateDelivery(recipient, sender)
}

func EvaluateBlockOnly(a, b Party) AccessDecision {
	return privacypolicy.EvaluateBlockOnly(a, b)
}

func EvaluateProfileAccess(viewer, target Party) AccessDecision {
	return privacypolicy.EvaluateProfileAccess(viewer, target)
}

func DecisionError(decision AccessDecision) error {
	return privacypolicy.DecisionError(decision)
}
