package rpc

import (
	"context"
	"encoding/json"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/internal/domains/rpckit"
	"aim-chat/conversation-core/pkg/models"
)

type conversationIDParams struct {
	ConversationID string `json:"conversation_id"`
}

type updateParams struct {
	ConversationID string `json:"conversation_id"`
	models.ConversationUpdateRequest
}

func Dispatch(ctx context.Context, service contracts.ChatService, actorID, method string, rawParams json.RawMessage) (any, *rpckit.Error, bool) {
	switch method {
	case "conversation.create":
		var p models.ConversationCreateRequest
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.CreateConversation(ctx, actorID, p)
		})
		return result, rpcErr, true
	case "conversation.update":
		var p updateParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.UpdateConversation(ctx, p.ConversationID, actorID, p.ConversationUpdateRequest)
		})
		return result, rpcErr, true
	case "conversation.delete":
		var p conversationIDParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			if err := service.DeleteConversation(ctx, p.ConversationID, actorID); err != nil {
				return nil, err
			}
			return map[string]bool{"deleted": true}, nil
		})
		return result, rpcErr, true
	case "conversation.get":
		var p conversationIDParams
		if rpcErr := rpckit.DecodeParams(rawParams, &p); rpcErr != nil {
			return nil, rpcErr, true
		}
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.GetConversation(ctx, p.ConversationID, actorID)
		})
		return result, rpcErr, true
	case "conversation.list":
		result, rpcErr := rpckit.Call(func() (any, error) {
			return service.ListConversations(ctx, actorID)
		})
		return result, rpcErr, true
	default:
		return nil, nil, false
	}
}
