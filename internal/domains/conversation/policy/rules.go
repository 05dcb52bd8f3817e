package policy

import (
	"slices"
	"strings"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/pkg/models"
)

var (
	ErrConversationNotFound  = contracts.NewError(contracts.KindNotFound, "conversation_not_found", "conversation not found")
	ErrUpdateTargetMissing   = contracts.NewError(contracts.KindBadRequest, "conversation_not_found", "conversation does not exist")
	ErrNotParticipant        = contracts.NewError(contracts.KindForbidden, "not_participant", "actor is not a participant")
	ErrAdminRequired         = contracts.NewError(contracts.KindForbidden, "admin_required", "group admin rights are required")
	ErrInvalidType           = contracts.NewError(contracts.KindBadRequest, "invalid_type", "conversation type must be direct or group")
	ErrDirectParticipants    = contracts.NewError(contracts.KindBadRequest, "invalid_participants", "direct conversation requires exactly one other participant")
	ErrGroupNameRequired     = contracts.NewError(contracts.KindBadRequest, "name_required", "group name is required")
	ErrDirectMembershipFixed = contracts.NewError(contracts.KindBadRequest, "direct_membership_fixed", "direct conversation membership cannot change")
	ErrAdminNotParticipant   = contracts.NewError(contracts.KindBadRequest, "admin_not_participant", "admins must be participants")
	ErrEmptyUpdate           = contracts.NewError(contracts.KindBadRequest, "empty_update", "update has no fields")
	ErrInvalidParticipant    = contracts.NewError(contracts.KindBadRequest, "invalid_participant", "participant id is malformed")
)

// CreateInput is a validated create request. Others never contains the initiator.
type CreateInput struct {
	Type        models.ConversationType
	Others      []string
	Name        string
	Avatar      string
	Description string
}

func ValidateCreate(initiatorID string, req models.ConversationCreateRequest) (CreateInput, error) {
	convType, ok := models.ParseConversationType(string(req.Type))
	if !ok {
		return CreateInput{}, ErrInvalidType
	}
	others := slices.DeleteFunc(models.NormalizeIDs(req.ParticipantIDs), func(id string) bool {
		return id == initiatorID
	})
	if err := ValidateParticipantIDs(others); err != nil {
		return CreateInput{}, err
	}
	in := CreateInput{
		Type:        convType,
		Others:      others,
		Name:        strings.TrimSpace(req.Name),
		Avatar:      strings.TrimSpace(req.Avatar),
		Description: strings.TrimSpace(req.Description),
	}
	switch convType {
	case models.ConversationTypeDirect:
		if len(others) != 1 {
			return CreateInput{}, ErrDirectParticipants
		}
	case models.ConversationTypeGroup:
		if in.Name == "" {
			return CreateInput{}, ErrGroupNameRequired
		}
	}
	return in, nil
}

func NewDirect(id, initiatorID, otherID string, now time.Time) models.Conversation {
	return models.Conversation{
		ID:           id,
		Type:         models.ConversationTypeDirect,
		Participants: []string{initiatorID, otherID},
		CreatedBy:    initiatorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewGroup makes the initiator the only admin.
func NewGroup(id, initiatorID string, in CreateInput, now time.Time) models.Conversation {
	return models.Conversation{
		ID:           id,
		Type:         models.ConversationTypeGroup,
		Participants: append([]string{initiatorID}, in.Others...),
		Admins:       []string{initiatorID},
		Name:         in.Name,
		Avatar:       in.Avatar,
		Description:  in.Description,
		CreatedBy:    initiatorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func EnsureParticipant(conv models.Conversation, actorID string) error {
	if !conv.HasParticipant(actorID) {
		return ErrNotParticipant
	}
	return nil
}

// EnsureCanManage is the rule for update and pin: participant, plus admin in groups.
func EnsureCanManage(conv models.Conversation, actorID string) error {
	if err := EnsureParticipant(conv, actorID); err != nil {
		return err
	}
	if conv.Type == models.ConversationTypeGroup && !conv.IsAdmin(actorID) {
		return ErrAdminRequired
	}
	return nil
}

func ValidateParticipantIDs(ids []string) error {
	for _, id := range ids {
		if !models.ValidUserID(id) {
			return ErrInvalidParticipant
		}
	}
	return nil
}

// NewParticipants returns requested ids not yet in the conversation.
func NewParticipants(conv models.Conversation, requested []string) []string {
	return slices.DeleteFunc(models.NormalizeIDs(requested), conv.HasParticipant)
}

func ValidateUpdate(conv models.Conversation, req models.ConversationUpdateRequest) error {
	if req.IsEmpty() {
		return ErrEmptyUpdate
	}
	if conv.Type == models.ConversationTypeDirect && (len(req.Participants) > 0 || len(req.Admins) > 0) {
		return ErrDirectMembershipFixed
	}
	if err := ValidateParticipantIDs(models.NormalizeIDs(req.Participants)); err != nil {
		return err
	}
	return ValidateParticipantIDs(models.NormalizeIDs(req.Admins))
}

// ApplyUpdate merges req into conv. Participants are a set union and admins
// are a set union restricted to participants.
func ApplyUpdate(conv *models.Conversation, req models.ConversationUpdateRequest, now time.Time) error {
	if len(req.Participants) > 0 {
		conv.Participants = models.NormalizeIDs(append(conv.Participants, req.Participants...))
	}
	if len(req.Admins) > 0 {
		for _, id := range models.NormalizeIDs(req.Admins) {
			if !conv.HasParticipant(id) {
				return ErrAdminNotParticipant
			}
		}
		conv.Admins = models.NormalizeIDs(append(conv.Admins, req.Admins...))
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if conv.Type == models.ConversationTypeGroup && name == "" {
			return ErrGroupNameRequired
		}
		conv.Name = name
	}
	if req.Description != nil {
		conv.Description = strings.TrimSpace(*req.Description)
	}
	if req.Avatar != nil {
		conv.Avatar = strings.TrimSpace(*req.Avatar)
	}
	conv.UpdatedAt = now
	return nil
}

// RemoveMember drops userID from participants and admins and reports
// whether the group is now empty.
func RemoveMember(conv *models.Conversation, userID string) bool {
	conv.Participants = slices.DeleteFunc(conv.Participants, func(id string) bool { return id == userID })
	conv.Admins = slices.DeleteFunc(conv.Admins, func(id string) bool { return id == userID })
	return len(conv.Participants) == 0
}
