package contracts

import contractports "aim-chat/conversation-core/internal/domains/contracts/ports"

type ConversationAPI = contractports.ConversationAPI
type MessagingAPI = contractports.MessagingAPI
type PrivacyAPI = contractports.PrivacyAPI
type NotificationAPI = contractports.NotificationAPI
type ChatService = contractports.ChatService
type ReactionOutcome = contractports.ReactionOutcome
type ReactionResult = contractports.ReactionResult
type KindError = contractports.KindError

const (
	ReactionAdded   = contractports.ReactionAdded
	ReactionRemoved = contractports.ReactionRemoved
	ReactionUpdated = contractports.ReactionUpdated
)
