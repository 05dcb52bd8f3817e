package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	conversationpolicy "aim-chat/conversation-core/internal/domains/conversation/policy"
	privacymodel "aim-chat/conversation-core/internal/domains/privacy/model"
	privacyusecase "aim-chat/conversation-core/internal/domains/privacy/usecase"
	"aim-chat/conversation-core/internal/storage"
	"aim-chat/conversation-core/pkg/models"
)

type recordedEvent struct {
	Topic   string
	Type    models.EventType
	Payload any
}

type recorder struct {
	mu      sync.Mutex
	events  []recordedEvent
	notices []models.NotificationRequest
}

func (r *recorder) emit(topic string, eventType models.EventType, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Topic: topic, Type: eventType, Payload: payload})
}

func (r *recorder) notify(req models.NotificationRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, req)
}

func (r *recorder) find(topic string, eventType models.EventType) (recordedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Topic == topic && e.Type == eventType {
			return e, true
		}
	}
	return recordedEvent{}, false
}

type harness struct {
	svc   *Service
	convs *storage.ConversationStore
	dir   *storage.DirectoryStore
	rec   *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	docs, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("open store failed: %v", err)
	}
	t.Cleanup(func() { _ = docs.Close() })
	dir := storage.NewDirectoryStore(docs)
	convs := storage.NewConversationStore(docs)
	rec := &recorder{}
	var seq atomic.Int64
	svc := NewService(ServiceDeps{
		Conversations: convs,
		Gate:          privacyusecase.NewGate(dir, dir),
		GenerateID: func(prefix string) (string, error) {
			return fmt.Sprintf("%s_%d", prefix, seq.Add(1)), nil
		},
		Now:    func() time.Time { return time.Now().UTC() },
		Emit:   rec.emit,
		Notify: rec.notify,
	})
	return &harness{svc: svc, convs: convs, dir: dir, rec: rec}
}

func (h *harness) settings(t *testing.T, s privacymodel.PrivacySettings) {
	t.Helper()
	if err := h.dir.PutPrivacySettings(context.Background(), s); err != nil {
		t.Fatalf("put settings failed: %v", err)
	}
}

func (h *harness) follows(t *testing.T, userID string, following ...string) {
	t.Helper()
	if err := h.dir.PutUser(context.Background(), models.UserProfile{ID: userID, Username: userID, Following: following}); err != nil {
		t.Fatalf("put user failed: %v", err)
	}
}

func direct(other string) models.ConversationCreateRequest {
	return models.ConversationCreateRequest{Type: models.ConversationTypeDirect, ParticipantIDs: []string{other}}
}

func group(name string, members ...string) models.ConversationCreateRequest {
	return models.ConversationCreateRequest{Type: models.ConversationTypeGroup, Name: name, ParticipantIDs: members}
}

func assertReason(t *testing.T, err error, kind, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s error, got nil", kind, reason)
	}
	if got := contracts.KindOf(err); got != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, got, err)
	}
	if reason != "" && contracts.ReasonOf(err) != reason {
		t.Fatalf("expected reason %s, got %s (%v)", reason, contracts.ReasonOf(err), err)
	}
}

func TestCreateDirectDeduplicatesPair(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.svc.CreateConversation(ctx, "alice", direct("bob"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := h.svc.CreateConversation(ctx, "bob", direct("alice"))
	if err != nil {
		t.Fatalf("reverse create failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected deduplicated conversation, got %s and %s", first.ID, second.ID)
	}
	if len(first.Admins) != 0 {
		t.Fatalf("direct conversations have no admins, got %v", first.Admins)
	}
}

func TestConcurrentDirectCreatesYieldOneConversation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor, other := "alice", "bob"
			if i%2 == 1 {
				actor, other = other, actor
			}
			conv, err := h.svc.CreateConversation(ctx, actor, direct(other))
			if err != nil {
				t.Errorf("create failed: %v", err)
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("expected a single conversation id, got %v", ids)
		}
	}
	list, err := h.svc.ListConversations(ctx, "alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one stored conversation, got %d", len(list))
	}
}

func TestCreateDirectRunsDeliveryPolicy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.settings(t, privacymodel.PrivacySettings{UserID: "bob", AllowMessagesFrom: privacymodel.MessagingFriends})

	_, err := h.svc.CreateConversation(ctx, "alice", direct("bob"))
	assertReason(t, err, contracts.KindForbidden, string(privacymodel.ReasonFriendsOnly))

	// One-way follow is not enough.
	h.follows(t, "alice", "bob")
	_, err = h.svc.CreateConversation(ctx, "alice", direct("bob"))
	assertReason(t, err, contracts.KindForbidden, string(privacymodel.ReasonFriendsOnly))

	h.follows(t, "bob", "alice")
	if _, err := h.svc.CreateConversation(ctx, "alice", direct("bob")); err != nil {
		t.Fatalf("expected mutual follow to allow, got %v", err)
	}
}

func TestCreateDirectDeniedWhenSenderBlocked(t *testing.T) {
	h := newHarness(t)
	h.settings(t, privacymodel.PrivacySettings{UserID: "alice", BlockedUsers: []string{"bob"}})
	_, err := h.svc.CreateConversation(context.Background(), "alice", direct("bob"))
	assertReason(t, err, contracts.KindForbidden, string(privacymodel.ReasonBlocked))
	_, err = h.svc.CreateConversation(context.Background(), "bob", direct("alice"))
	assertReason(t, err, contracts.KindForbidden, string(privacymodel.ReasonBlocked))
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cases := []struct {
		name   string
		actor  string
		req    models.ConversationCreateRequest
		kind   string
		reason string
	}{
		{name: "anonymous", actor: "", req: direct("bob"), kind: contracts.KindUnauthenticated},
		{name: "unknown type", actor: "alice", req: models.ConversationCreateRequest{Type: "channel"}, kind: contracts.KindBadRequest, reason: "invalid_type"},
		{name: "direct with self", actor: "alice", req: direct("alice"), kind: contracts.KindBadRequest, reason: "invalid_participants"},
		{name: "direct with two", actor: "alice", req: models.ConversationCreateRequest{Type: models.ConversationTypeDirect, ParticipantIDs: []string{"bob", "carol"}}, kind: contracts.KindBadRequest, reason: "invalid_participants"},
		{name: "group blank name", actor: "alice", req: group("   ", "bob"), kind: contracts.KindBadRequest, reason: "name_required"},
		{name: "separator in actor", actor: "x|y", req: direct("z"), kind: contracts.KindUnauthenticated, reason: "invalid_actor"},
		{name: "slash in actor", actor: "a/b", req: direct("c"), kind: contracts.KindUnauthenticated, reason: "invalid_actor"},
		{name: "separator in participant", actor: "x", req: direct("y|z"), kind: contracts.KindBadRequest, reason: "invalid_participant"},
		{name: "slash in group member", actor: "alice", req: group("team", "bob", "c/d"), kind: contracts.KindBadRequest, reason: "invalid_participant"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.CreateConversation(ctx, tc.actor, tc.req)
			assertReason(t, err, tc.kind, tc.reason)
		})
	}
}

func TestCreateGroupIgnoresTierButHonorsBlocks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.settings(t, privacymodel.PrivacySettings{UserID: "bob", AllowMessagesFrom: privacymodel.MessagingNone})

	conv, err := h.svc.CreateConversation(ctx, "alice", group("  Book club ", "bob", "carol", "bob"))
	if err != nil {
		t.Fatalf("expected group add to ignore tier, got %v", err)
	}
	if conv.Name != "Book club" {
		t.Fatalf("expected trimmed name, got %q", conv.Name)
	}
	if len(conv.Participants) != 3 || len(conv.Admins) != 1 || conv.Admins[0] != "alice" {
		t.Fatalf("unexpected membership: participants=%v admins=%v", conv.Participants, conv.Admins)
	}
	if len(h.rec.notices) != 1 || h.rec.notices[0].Type != models.NotificationGroupAdded {
		t.Fatalf("expected one group_added notification request, got %+v", h.rec.notices)
	}

	h.settings(t, privacymodel.PrivacySettings{UserID: "dave", BlockedUsers: []string{"alice"}})
	_, err = h.svc.CreateConversation(ctx, "alice", group("Other", "dave"))
	assertReason(t, err, contracts.KindForbidden, string(privacymodel.ReasonBlocked))
}

func TestGroupRenameRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv, err := h.svc.CreateConversation(ctx, "alice", group("Team", "bob"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	name := "Renamed"
	_, err = h.svc.UpdateConversation(ctx, conv.ID, "bob", models.ConversationUpdateRequest{Name: &name})
	if !errors.Is(err, conversationpolicy.ErrAdminRequired) {
		t.Fatalf("expected admin required, got %v", err)
	}
	_, err = h.svc.UpdateConversation(ctx, conv.ID, "mallory", models.ConversationUpdateRequest{Name: &name})
	if !errors.Is(err, conversationpolicy.ErrNotParticipant) {
		t.Fatalf("expected not participant, got %v", err)
	}

	updated, err := h.svc.UpdateConversation(ctx, conv.ID, "alice", models.ConversationUpdateRequest{Name: &name})
	if err != nil {
		t.Fatalf("admin rename failed: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("expected renamed conversation, got %q", updated.Name)
	}
	evt, ok := h.rec.find(models.ConversationTopic(conv.ID), models.EventConversationUpdated)
	if !ok {
		t.Fatal("expected conversation_updated on conversation topic")
	}
	if got := evt.Payload.(models.Conversation).Name; got != "Renamed" {
		t.Fatalf("expected event payload with new name, got %q", got)
	}
}

func TestUpdateMissingConversationIsBadRequest(t *testing.T) {
	h := newHarness(t)
	name := "x"
	_, err := h.svc.UpdateConversation(context.Background(), "nope", "alice", models.ConversationUpdateRequest{Name: &name})
	assertReason(t, err, contracts.KindBadRequest, "conversation_not_found")
}

func TestUpdateAddsParticipantsAndAdmins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv, err := h.svc.CreateConversation(ctx, "alice", group("Team", "bob"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	h.rec.notices = nil
	updated, err := h.svc.UpdateConversation(ctx, conv.ID, "alice", models.ConversationUpdateRequest{
		Participants: []string{"bob", "carol"},
		Admins:       []string{"bob"},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if len(updated.Participants) != 3 || !updated.IsAdmin("bob") {
		t.Fatalf("unexpected membership: %v admins=%v", updated.Participants, updated.Admins)
	}
	if len(h.rec.notices) != 1 || len(h.rec.notices[0].RecipientIDs) != 1 || h.rec.notices[0].RecipientIDs[0] != "carol" {
		t.Fatalf("expected group_added for carol only, got %+v", h.rec.notices)
	}

	_, err = h.svc.UpdateConversation(ctx, conv.ID, "alice", models.ConversationUpdateRequest{Admins: []string{"zed"}})
	assertReason(t, err, contracts.KindBadRequest, "admin_not_participant")

	h.settings(t, privacymodel.PrivacySettings{UserID: "erin", BlockedUsers: []string{"alice"}})
	_, err = h.svc.UpdateConversation(ctx, conv.ID, "alice", models.ConversationUpdateRequest{Participants: []string{"erin"}})
	assertReason(t, err, contracts.KindForbidden, string(privacymodel.ReasonBlocked))
}

func TestDirectMembershipIsFixed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv, err := h.svc.CreateConversation(ctx, "alice", direct("bob"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	_, err = h.svc.UpdateConversation(ctx, conv.ID, "alice", models.ConversationUpdateRequest{Participants: []string{"carol"}})
	assertReason(t, err, contracts.KindBadRequest, "direct_membership_fixed")
}

func TestDeleteDirectRemovesForBothSides(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv, err := h.svc.CreateConversation(ctx, "alice", direct("bob"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := h.svc.DeleteConversation(ctx, conv.ID, "alice"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	for _, user := range []string{"alice", "bob"} {
		list, err := h.svc.ListConversations(ctx, user)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(list) != 0 {
			t.Fatalf("expected %s to lose the conversation, got %d", user, len(list))
		}
		if _, ok := h.rec.find(models.UserTopic(user), models.EventConversationDeleted); !ok {
			t.Fatalf("expected conversation_deleted on %s's topic", user)
		}
	}
	_, err = h.svc.GetConversation(ctx, conv.ID, "bob")
	if !errors.Is(err, conversationpolicy.ErrConversationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteGroupRemovesActorThenDeletesWhenEmpty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv, err := h.svc.CreateConversation(ctx, "alice", group("Team", "bob"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := h.svc.DeleteConversation(ctx, conv.ID, "alice"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	evt, ok := h.rec.find(models.ConversationTopic(conv.ID), models.EventMemberLeft)
	if !ok {
		t.Fatal("expected member_left on the conversation topic")
	}
	if change, _ := evt.Payload.(models.MembershipChange); change.UserID != "alice" || change.ConversationID != conv.ID {
		t.Fatalf("unexpected member_left payload: %+v", evt.Payload)
	}
	left, err := h.svc.GetConversation(ctx, conv.ID, "bob")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if left.HasParticipant("alice") || left.IsAdmin("alice") {
		t.Fatalf("expected alice removed, got participants=%v admins=%v", left.Participants, left.Admins)
	}
	if err := h.svc.DeleteConversation(ctx, conv.ID, "alice"); !errors.Is(err, conversationpolicy.ErrNotParticipant) {
		t.Fatalf("expected not participant on second leave, got %v", err)
	}
	if err := h.svc.DeleteConversation(ctx, conv.ID, "bob"); err != nil {
		t.Fatalf("last leave failed: %v", err)
	}
	if _, found, _ := h.convs.GetConversation(ctx, conv.ID); found {
		t.Fatal("expected empty group to be hard deleted")
	}
}

func TestAuthorizeSubscription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv, err := h.svc.CreateConversation(ctx, "alice", group("Team", "bob"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := h.svc.AuthorizeSubscription(ctx, "bob", conv.ID); err != nil {
		t.Fatalf("expected participant to subscribe, got %v", err)
	}
	if err := h.svc.AuthorizeSubscription(ctx, "mallory", conv.ID); !errors.Is(err, conversationpolicy.ErrNotParticipant) {
		t.Fatalf("expected not participant, got %v", err)
	}
}

func TestDirectPairsWithSeparatorsStayDistinct(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.svc.CreateConversation(ctx, "xy", direct("z"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := h.svc.CreateConversation(ctx, "x", direct("yz"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("distinct pairs share conversation %s", first.ID)
	}
	if _, err := h.svc.GetOrCreateDirect(ctx, "x", "y|z"); !errors.Is(err, conversationpolicy.ErrInvalidParticipant) {
		t.Fatalf("expected invalid participant, got %v", err)
	}
	list, err := h.svc.ListConversations(ctx, "x")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != second.ID {
		t.Fatalf("expected only %s for x, got %+v", second.ID, list)
	}
}

func TestUpdateRejectsMalformedMembers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv, err := h.svc.CreateConversation(ctx, "alice", group("team", "bob"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	_, err = h.svc.UpdateConversation(ctx, conv.ID, "alice", models.ConversationUpdateRequest{Participants: []string{"eve/bob"}})
	assertReason(t, err, contracts.KindBadRequest, "invalid_participant")
	_, err = h.svc.UpdateConversation(ctx, conv.ID, "alice", models.ConversationUpdateRequest{Admins: []string{"bob|x"}})
	assertReason(t, err, contracts.KindBadRequest, "invalid_participant")
}
