package rpc

import (
	"context"
	"encoding/json"
	"strings"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/internal/domains/rpckit"
)

func Dispatch(ctx context.Context, service contracts.ChatService, actorID, method string, rawParams json.RawMessage) (any, *rpckit.Error, bool) {
	switch method {
	case "profile.access":
		var p struct {
			TargetID string `json:"target_id"`
		}
		if err := json.Unmarshal(rawParams, &p); err != nil || strings.TrimSpace(p.TargetID) == "" {
			return nil, rpckit.InvalidParams(), true
		}
		// actorID may be empty here: anonymous viewers get a decision, not an error.
		decision, err := service.CanAccessProfile(ctx, actorID, p.TargetID)
		if err != nil {
			return nil, rpckit.ServiceError(err), true
		}
		return decision, nil, true
	default:
		return nil, nil, false
	}
}
