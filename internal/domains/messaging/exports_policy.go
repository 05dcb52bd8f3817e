package messaging

import messagingpolicy "aim-chat/conversation-core/internal/domains/messaging/policy"

const MaxContentLength = messagingpolicy.MaxContentLength

var (
	ErrMessageNotFound          = messagingpolicy.ErrMessageNotFound
	ErrNotSender                = messagingpolicy.ErrNotSender
	ErrContentRequired          = messagingpolicy.ErrContentRequired
	ErrContentTooLong           = messagingpolicy.ErrContentTooLong
	ErrInvalidReply             = messagingpolicy.ErrInvalidReply
	ErrMessageNotInConversation = messagingpolicy.ErrMessageNotInConversation
	ErrRateLimited              = messagingpolicy.ErrRateLimited
	ErrInvalidReaction          = messagingpolicy.ErrInvalidReaction
)
