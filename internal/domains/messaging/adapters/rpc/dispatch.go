package rpc

import (
	"context"
	"encoding/json"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/internal/domains/rpckit"
	"aim-chat/conversation-core/pkg/models"
)

type messageIDParams struct {
	MessageID string `json:"message_id"`
}

type conversationIDParams struct {
	ConversationID string `json:"conversation_id"`
}

type sendDirectParams struct {
	RecipientID string `json:"recipient_id"`
	models.MessageSendRequest
}

type shareParams struct {
	PostID         string `json:"post_id"`
	ConversationID string `json:"conversation_id"`
	Comment        string `json:"comment,omitempty"`
}

type editParams struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

type forwardParams struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

type pinParams struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type listParams struct {
	ConversationID string    `json:"conversation_id"`
	Limit          int       `json:"limit,omitempty"`
	Before         time.Time `json:"before,omitempty"`
}

type reactionParams struct {
	MessageID string `json:"message_id"`
	models.ReactionRequest
}

type notificationListParams struct {
	Limit int `json:"limit,omitempty"`
}

func Dispatch(ctx context.Context, service contracts.ChatService, actorID, method string, rawParams json.RawMessage) (any, *rpckit.Error, bool) {
	switch method {
	case "message.send":
		var p models.MessageSendRequest
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.SendMessage(ctx, actorID, p)
		})
		return result, rpcErr, true
	case "message.send_direct":
		var p sendDirectParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.SendDirectMessage(ctx, actorID, p.RecipientID, p.MessageSendRequest)
		})
		return result, rpcErr, true
	case "message.share_post":
		var p shareParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.SharePost(ctx, actorID, p.PostID, p.ConversationID, p.Comment)
		})
		return result, rpcErr, true
	case "message.edit":
		var p editParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.EditMessage(ctx, p.MessageID, actorID, p.Content)
		})
		return result, rpcErr, true
	case "message.delete":
		var p messageIDParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			if err := service.DeleteMessage(ctx, p.MessageID, actorID); err != nil {
				return nil, err
			}
			return map[string]bool{"deleted": true}, nil
		})
		return result, rpcErr, true
	case "message.forward":
		var p forwardParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.ForwardMessage(ctx, p.MessageID, p.ConversationID, actorID)
		})
		return result, rpcErr, true
	case "message.mark_read":
		var p conversationIDParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			marked, err := service.MarkRead(ctx, p.ConversationID, actorID)
			if err != nil {
				return nil, err
			}
			return map[string]int{"marked": marked}, nil
		})
		return result, rpcErr, true
	case "message.pin", "message.unpin":
		var p pinParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			if method == "message.pin" {
				return service.PinMessage(ctx, p.ConversationID, p.MessageID, actorID)
			}
			return service.UnpinMessage(ctx, p.ConversationID, p.MessageID, actorID)
		})
		return result, rpcErr, true
	case "message.list":
		var p listParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.ListMessages(ctx, p.ConversationID, actorID, p.Limit, p.Before)
		})
		return result, rpcErr, true
	case "star.add", "star.remove":
		var p messageIDParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			var err error
			if method == "star.add" {
				err = service.StarMessage(ctx, p.MessageID, actorID)
			} else {
				err = service.UnstarMessage(ctx, p.MessageID, actorID)
			}
			if err != nil {
				return nil, err
			}
			return map[string]bool{"starred": method == "star.add"}, nil
		})
		return result, rpcErr, true
	case "star.list":
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.ListStarred(ctx, actorID)
		})
		return result, rpcErr, true
	case "reaction.toggle":
		var p reactionParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.ToggleReaction(ctx, p.MessageID, actorID, p.ReactionRequest)
		})
		return result, rpcErr, true
	case "reaction.remove":
		var p messageIDParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.RemoveReaction(ctx, p.MessageID, actorID)
		})
		return result, rpcErr, true
	case "notification.list":
		var p notificationListParams
		if len(rawParams) > 0 {
			if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
				return nil, rpcErr, true
			}
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.ListNotifications(ctx, actorID, p.Limit)
		})
		return result, rpcErr, true
	default:
		return nil, nil, false
	}
}
