package conversation

import conversationpolicy "aim-chat/conversation-core/internal/domains/conversation/policy"

var (
	ErrConversationNotFound = conversationpolicy.ErrConversationNotFound
	ErrUpdateTargetMissing  = conversationpolicy.ErrUpdateTargetMissing
	ErrNotParticipant       = conversationpolicy.ErrNotParticipant
	ErrAdminRequired        = conversationpolicy.ErrAdminRequired
)
