package policy

import (
	"strings"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/pkg/models"
)

var ErrInvalidReaction = contracts.NewError(contracts.KindBadRequest, "invalid_reaction", "emoji category and name are required")

func ValidateReaction(req models.ReactionRequest) (models.ReactionRequest, error) {
	req.EmojiCategory = strings.TrimSpace(req.EmojiCategory)
	req.EmojiName = strings.TrimSpace(req.EmojiName)
	if req.EmojiCategory == "" || req.EmojiName == "" {
		return models.ReactionRequest{}, ErrInvalidReaction
	}
	return req, nil
}

// ApplyToggle leaves at most one reaction by userID. A reaction in the same
// category as the existing one removes it; any other category replaces it in
// place. Extra entries for the user, however they got there, are dropped.
func ApplyToggle(msg *models.Message, userID string, req models.ReactionRequest, now time.Time) contracts.ReactionOutcome {
	ix := indexByUser(msg.Reactions, reactionUser)
	next := models.Reaction{UserID: userID, EmojiCategory: req.EmojiCategory, EmojiName: req.EmojiName, ReactedAt: now}
	outcome := contracts.ReactionUpdated
	switch existing, ok := ix.get(userID); {
	case !ok:
		ix.put(userID, next)
		outcome = contracts.ReactionAdded
	case existing.EmojiCategory == req.EmojiCategory:
		ix.remove(userID)
		outcome = contracts.ReactionRemoved
	default:
		ix.put(userID, next)
	}
	msg.Reactions = ix.list()
	return outcome
}

// RemoveReactionsBy drops every reaction by userID and reports whether any existed.
func RemoveReactionsBy(msg *models.Message, userID string) bool {
	ix := indexByUser(msg.Reactions, reactionUser)
	removed := ix.remove(userID)
	msg.Reactions = ix.list()
	return removed
}
