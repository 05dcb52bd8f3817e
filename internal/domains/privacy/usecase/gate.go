package usecase

import (
	"context"
	"strings"

	"aim-chat/conversation-core/internal/domains/contracts"
	privacymodel "aim-chat/conversation-core/internal/domains/privacy/model"
	privacypolicy "aim-chat/conversation-core/internal/domains/privacy/policy"
)

// Gate loads the records for both parties and runs the pure policy over them.
// It is the single entry point for social-graph checks; callers choose the
// rule set per call site.
type Gate struct {
	settings  contracts.PrivacySettingsStore
	directory contracts.UserDirectory
}

func NewGate(settings contracts.PrivacySettingsStore, directory contracts.UserDirectory) *Gate {
	return &Gate{settings: settings, directory: directory}
}

// Check returns nil when allowed, a Forbidden sentinel on denial, or an
// internal error when a record could not be loaded.
func (g *Gate) Check(ctx context.Context, mode privacypolicy.CheckMode, recipientID, senderID string) error {
	withFollows := mode == privacypolicy.CheckDirectDelivery
	recipient, err := g.loadParty(ctx, recipientID, withFollows)
	if err != nil {
		return err
	}
	sender, err := g.loadParty(ctx, senderID, withFollows)
	if err != nil {
		return err
	}
	return privacypolicy.DecisionError(privacypolicy.Evaluate(mode, recipient, sender))
}

func (g *Gate) CanDeliverMessage(ctx context.Context, recipientID, senderID string) (privacymodel.AccessDecision, error) {
	recipient, err := g.loadParty(ctx, recipientID, true)
	if err != nil {
		return privacymodel.AccessDecision{}, err
	}
	sender, err := g.loadParty(ctx, senderID, true)
	if err != nil {
		return privacymodel.AccessDecision{}, err
	}
	return privacypolicy.EvaluateDelivery(recipient, sender), nil
}

func (g *Gate) CanAccessProfile(ctx context.Context, viewerID, targetID string) (privacymodel.AccessDecision, error) {
	target, err := g.loadParty(ctx, targetID, false)
	if err != nil {
		return privacymodel.AccessDecision{}, err
	}
	viewer := privacypolicy.Party{ID: strings.TrimSpace(viewerID)}
	if viewer.ID != "" {
		if viewer, err = g.loadParty(ctx, viewer.ID, false); err != nil {
			return privacymodel.AccessDecision{}, err
		}
	}
	return privacypolicy.EvaluateProfileAccess(viewer, target), nil
}

// Blocked reports whether either user blocks the other.
func (g *Gate) Blocked(ctx context.Context, a, b string) (bool, error) {
	left, err := g.loadParty(ctx, a, false)
	if err != nil {
		return false, err
	}
	right, err := g.loadParty(ctx, b, false)
	if err != nil {
		return false, err
	}
	return privacypolicy.MutuallyBlocked(left, right), nil
}

func (g *Gate) ShouldNotify(ctx context.Context, recipientID, eventType string) (bool, error) {
	settings, found, err := g.settings.GetPrivacySettings(ctx, strings.TrimSpace(recipientID))
	if err != nil {
		return false, contracts.Internal(err)
	}
	if !found {
		return privacypolicy.ShouldNotify(nil, eventType), nil
	}
	return privacypolicy.ShouldNotify(&settings, eventType), nil
}

func (g *Gate) IsDeactivated(ctx context.Context, userID string) (bool, error) {
	settings, found, err := g.settings.GetPrivacySettings(ctx, strings.TrimSpace(userID))
	if err != nil {
		return false, contracts.Internal(err)
	}
	return found && settings.IsDeactivated, nil
}

func (g *Gate) loadParty(ctx context.Context, userID string, withFollows bool) (privacypolicy.Party, error) {
	party := privacypolicy.Party{ID: strings.TrimSpace(userID)}
	settings, found, err := g.settings.GetPrivacySettings(ctx, party.ID)
	if err != nil {
		return privacypolicy.Party{}, contracts.Internal(err)
	}
	if found {
		normalized := privacymodel.NormalizePrivacySettings(settings)
		party.Settings = &normalized
	}
	if withFollows && g.directory != nil {
		profile, ok, err := g.directory.GetUser(ctx, party.ID)
		if err != nil {
			return privacypolicy.Party{}, contracts.Internal(err)
		}
		if ok {
			party.Following = profile.Following
		}
	}
	return party, nil
}
