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
	conversationusecase "aim-chat/conversation-core/internal/domains/conversation/usecase"
	messagingpolicy "aim-chat/conversation-core/internal/domains/messaging/policy"
	privacymodel "aim-chat/conversation-core/internal/domains/privacy/model"
	privacyusecase "aim-chat/conversation-core/internal/domains/privacy/usecase"
	"aim-chat/conversation-core/internal/platform/ratelimiter"
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

func (r *recorder) count(eventType models.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (r *recorder) noticesOf(kind models.NotificationType) []models.NotificationRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.NotificationRequest
	for _, n := range r.notices {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

type harness struct {
	svc   *Service
	convs *conversationusecase.Service
	msgs  *storage.MessageStore
	dir   *storage.DirectoryStore
	rec   *recorder
}

func newHarness(t *testing.T, opts ...func(*ServiceDeps)) *harness {
	t.Helper()
	docs, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("open store failed: %v", err)
	}
	t.Cleanup(func() { _ = docs.Close() })
	dir := storage.NewDirectoryStore(docs)
	convStore := storage.NewConversationStore(docs)
	msgs := storage.NewMessageStore(docs)
	gate := privacyusecase.NewGate(dir, dir)
	blobs, err := storage.NewBlobResolver("https://cdn.example.com/uploads")
	if err != nil {
		t.Fatalf("blob resolver failed: %v", err)
	}
	rec := &recorder{}
	var seq atomic.Int64
	generateID := func(prefix string) (string, error) {
		return fmt.Sprintf("%s_%d", prefix, seq.Add(1)), nil
	}
	convs := conversationusecase.NewService(conversationusecase.ServiceDeps{
		Conversations: convStore,
		Gate:          gate,
		GenerateID:    generateID,
	})
	deps := ServiceDeps{
		Conversations: convStore,
		Messages:      msgs,
		Stars:         storage.NewStarStore(docs),
		Blobs:         blobs,
		Gate:          gate,
		Directs:       convs,
		GenerateID:    generateID,
		Emit:          rec.emit,
		Notify:        rec.notify,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return &harness{svc: NewService(deps), convs: convs, msgs: msgs, dir: dir, rec: rec}
}

func (h *harness) settings(t *testing.T, s privacymodel.PrivacySettings) {
	t.Helper()
	if err := h.dir.PutPrivacySettings(context.Background(), s); err != nil {
		t.Fatalf("put settings failed: %v", err)
	}
}

func (h *harness) group(t *testing.T, admin string, members ...string) models.Conversation {
	t.Helper()
	conv, err := h.convs.CreateConversation(context.Background(), admin, models.ConversationCreateRequest{
		Type:           models.ConversationTypeGroup,
		Name:           "crew",
		ParticipantIDs: members,
	})
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}
	return conv
}

func (h *harness) direct(t *testing.T, a, b string) models.Conversation {
	t.Helper()
	conv, err := h.convs.GetOrCreateDirect(context.Background(), a, b)
	if err != nil {
		t.Fatalf("create direct failed: %v", err)
	}
	return conv
}

func (h *harness) send(t *testing.T, actorID, conversationID, content string) models.Message {
	t.Helper()
	msg, err := h.svc.SendMessage(context.Background(), actorID, models.MessageSendRequest{ConversationID: conversationID, Content: content})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	return msg
}

func (h *harness) message(t *testing.T, id string) models.Message {
	t.Helper()
	msg, found, err := h.msgs.GetMessage(context.Background(), id)
	if err != nil || !found {
		t.Fatalf("expected message %s, found=%v err=%v", id, found, err)
	}
	return msg
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

func TestSendMessageTouchesConversationAndEmits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.group(t, "alice", "bob")
	msg := h.send(t, "alice", conv.ID, "  hello  ")

	if msg.Content != "hello" || msg.SenderID != "alice" || msg.Type != models.MessageTypeText {
		t.Fatalf("unexpected message: %+v", msg)
	}
	got, err := h.convs.GetConversation(ctx, conv.ID, "bob")
	if err != nil {
		t.Fatalf("get conversation failed: %v", err)
	}
	if got.LastMessageID != msg.ID || !got.UpdatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("expected conversation touched by %s, got last=%s updated=%v", msg.ID, got.LastMessageID, got.UpdatedAt)
	}
	if h.rec.count(models.EventNewMessage) != 1 {
		t.Fatal("expected one new_message event")
	}
	notices := h.rec.noticesOf(models.NotificationMessage)
	if len(notices) != 1 || notices[0].ActorID != "alice" || notices[0].EntityID != msg.ID {
		t.Fatalf("unexpected notification requests: %+v", notices)
	}
}

func TestSendValidation(t *testing.T) {
	h := newHarness(t)
	conv := h.group(t, "alice", "bob")
	long := make([]rune, messagingpolicy.MaxContentLength+1)
	for i := range long {
		long[i] = 'x'
	}
	cases := []struct {
		name   string
		req    models.MessageSendRequest
		reason string
	}{
		{name: "empty text", req: models.MessageSendRequest{Content: "   "}, reason: "content_required"},
		{name: "too long", req: models.MessageSendRequest{Content: string(long)}, reason: "content_too_long"},
		{name: "unknown type", req: models.MessageSendRequest{Content: "x", MessageType: "video"}, reason: "invalid_message_type"},
		{name: "image without file", req: models.MessageSendRequest{MessageType: "image"}, reason: "file_required"},
		{name: "post without id", req: models.MessageSendRequest{MessageType: "post"}, reason: "post_required"},
		{name: "unknown reply", req: models.MessageSendRequest{Content: "x", ReplyTo: "msg_missing"}, reason: "invalid_reply"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.ConversationID = conv.ID
			_, err := h.svc.SendMessage(context.Background(), "alice", tc.req)
			assertReason(t, err, contracts.KindBadRequest, tc.reason)
		})
	}
}

func TestSendImageResolvesFileURL(t *testing.T) {
	h := newHarness(t)
	conv := h.group(t, "alice", "bob")
	msg, err := h.svc.SendMessage(context.Background(), "alice", models.MessageSendRequest{
		ConversationID: conv.ID,
		MessageType:    "image",
		FileURL:        "2025/cat.png",
		FileName:       "cat.png",
	})
	if err != nil {
		t.Fatalf("send image failed: %v", err)
	}
	if msg.Attachment == nil || msg.Attachment.URL != "https://cdn.example.com/uploads/2025/cat.png" || msg.Attachment.Name != "cat.png" {
		t.Fatalf("unexpected attachment: %+v", msg.Attachment)
	}
}

func TestSendRequiresParticipant(t *testing.T) {
	h := newHarness(t)
	conv := h.group(t, "alice", "bob")
	_, err := h.svc.SendMessage(context.Background(), "mallory", models.MessageSendRequest{ConversationID: conv.ID, Content: "hi"})
	assertReason(t, err, contracts.KindForbidden, "not_participant")

	_, err = h.svc.SendMessage(context.Background(), "alice", models.MessageSendRequest{ConversationID: "conv_missing", Content: "hi"})
	assertReason(t, err, contracts.KindNotFound, "conversation_not_found")

	_, err = h.svc.SendMessage(context.Background(), "", models.MessageSendRequest{ConversationID: conv.ID, Content: "hi"})
	assertReason(t, err, contracts.KindUnauthenticated, "")
}

func TestSendDirectRechecksPolicyOnEverySend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	msg, err := h.svc.SendDirectMessage(ctx, "alice", "bob", models.MessageSendRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("send direct failed: %v", err)
	}
	conv := h.direct(t, "bob", "alice")
	if msg.ConversationID != conv.ID {
		t.Fatalf("expected message in %s, got %s", conv.ID, msg.ConversationID)
	}

	h.settings(t, privacymodel.PrivacySettings{UserID: "bob", AllowMessagesFrom: privacymodel.MessagingFriends})
	_, err = h.svc.SendMessage(ctx, "alice", models.MessageSendRequest{ConversationID: conv.ID, Content: "still there?"})
	assertReason(t, err, contracts.KindForbidden, string(privacymodel.ReasonFriendsOnly))

	h.settings(t, privacymodel.PrivacySettings{UserID: "bob", BlockedUsers: []string{"alice"}})
	_, err = h.svc.SendMessage(ctx, "alice", models.MessageSendRequest{ConversationID: conv.ID, Content: "hello?"})
	assertReason(t, err, contracts.KindForbidden, string(privacymodel.ReasonBlocked))
	// Blocks are symmetric: the blocker cannot send either.
	_, err = h.svc.SendMessage(ctx, "bob", models.MessageSendRequest{ConversationID: conv.ID, Content: "bye"})
	assertReason(t, err, contracts.KindForbidden, string(privacymodel.ReasonBlocked))
}

func TestDeactivatedSenderIsRejected(t *testing.T) {
	h := newHarness(t)
	conv := h.group(t, "alice", "bob")
	h.settings(t, privacymodel.PrivacySettings{UserID: "alice", IsDeactivated: true})
	_, err := h.svc.SendMessage(context.Background(), "alice", models.MessageSendRequest{ConversationID: conv.ID, Content: "hi"})
	assertReason(t, err, contracts.KindForbidden, string(privacymodel.ReasonDeactivated))
}

func TestSendIsRateLimitedPerSender(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, func(d *ServiceDeps) {
		d.Limiter = ratelimiter.New(ratelimiter.Config{RPS: 1, Burst: 2})
		d.Now = func() time.Time { return now }
	})
	conv := h.group(t, "alice", "bob")
	h.send(t, "alice", conv.ID, "one")
	h.send(t, "alice", conv.ID, "two")
	_, err := h.svc.SendMessage(context.Background(), "alice", models.MessageSendRequest{ConversationID: conv.ID, Content: "three"})
	assertReason(t, err, contracts.KindForbidden, "rate_limited")
	h.send(t, "bob", conv.ID, "other senders are unaffected")
}

func TestReplyMustStayInConversation(t *testing.T) {
	h := newHarness(t)
	first := h.group(t, "alice", "bob")
	second := h.group(t, "alice", "carol")
	original := h.send(t, "alice", first.ID, "question")

	reply, err := h.svc.SendMessage(context.Background(), "bob", models.MessageSendRequest{ConversationID: first.ID, Content: "answer", ReplyTo: original.ID})
	if err != nil || reply.ReplyTo != original.ID {
		t.Fatalf("expected reply, got %+v err=%v", reply, err)
	}
	_, err = h.svc.SendMessage(context.Background(), "alice", models.MessageSendRequest{ConversationID: second.ID, Content: "x", ReplyTo: original.ID})
	assertReason(t, err, contracts.KindBadRequest, "invalid_reply")
}

func TestSharePost(t *testing.T) {
	h := newHarness(t)
	conv := h.group(t, "alice", "bob")
	msg, err := h.svc.SharePost(context.Background(), "bob", "post_42", conv.ID, "look")
	if err != nil {
		t.Fatalf("share failed: %v", err)
	}
	if msg.Type != models.MessageTypePost || msg.Post == nil || msg.Post.PostID != "post_42" || msg.Content != "look" {
		t.Fatalf("unexpected shared message: %+v", msg)
	}
}

func TestEditAndDeleteAreSenderOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.group(t, "alice", "bob")
	msg := h.send(t, "alice", conv.ID, "typo")

	_, err := h.svc.EditMessage(ctx, msg.ID, "bob", "hijack")
	assertReason(t, err, contracts.KindForbidden, "not_sender")
	err = h.svc.DeleteMessage(ctx, msg.ID, "bob")
	assertReason(t, err, contracts.KindForbidden, "not_sender")

	edited, err := h.svc.EditMessage(ctx, msg.ID, "alice", "fixed")
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if edited.Content != "fixed" || !edited.Edited || edited.EditedAt == nil {
		t.Fatalf("unexpected edited message: %+v", edited)
	}
	_, err = h.svc.EditMessage(ctx, msg.ID, "alice", "  ")
	assertReason(t, err, contracts.KindBadRequest, "content_required")

	if err := h.svc.DeleteMessage(ctx, msg.ID, "alice"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if h.rec.count(models.EventMessageDeleted) != 1 {
		t.Fatal("expected message_deleted event")
	}
	err = h.svc.DeleteMessage(ctx, msg.ID, "alice")
	assertReason(t, err, contracts.KindNotFound, "message_not_found")
	_, err = h.svc.EditMessage(ctx, msg.ID, "alice", "ghost")
	assertReason(t, err, contracts.KindNotFound, "message_not_found")
}

func TestDeleteLeavesReferencesDangling(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.group(t, "alice", "bob")
	original := h.send(t, "alice", conv.ID, "pin me")
	if _, err := h.svc.PinMessage(ctx, conv.ID, original.ID, "alice"); err != nil {
		t.Fatalf("pin failed: %v", err)
	}
	if err := h.svc.StarMessage(ctx, original.ID, "bob"); err != nil {
		t.Fatalf("star failed: %v", err)
	}
	reply, err := h.svc.SendMessage(ctx, "bob", models.MessageSendRequest{ConversationID: conv.ID, Content: "ok", ReplyTo: original.ID})
	if err != nil {
		t.Fatalf("reply failed: %v", err)
	}

	if err := h.svc.DeleteMessage(ctx, original.ID, "alice"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	got, err := h.convs.GetConversation(ctx, conv.ID, "alice")
	if err != nil {
		t.Fatalf("get conversation failed: %v", err)
	}
	if !got.IsPinned(original.ID) {
		t.Fatal("expected pin to survive deletion")
	}
	stars, err := h.svc.ListStarred(ctx, "bob")
	if err != nil || len(stars) != 1 || stars[0].MessageID != original.ID {
		t.Fatalf("expected dangling star, got %+v err=%v", stars, err)
	}
	if h.message(t, reply.ID).ReplyTo != original.ID {
		t.Fatal("expected reply to keep its reference")
	}

	// A dangling pin can still be cleared.
	unpinned, err := h.svc.UnpinMessage(ctx, conv.ID, original.ID, "alice")
	if err != nil {
		t.Fatalf("unpin of deleted message failed: %v", err)
	}
	if unpinned.IsPinned(original.ID) {
		t.Fatal("expected pin removed")
	}
}

func TestForwardResetsMessageState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	source := h.group(t, "alice", "bob")
	target := h.group(t, "bob", "carol")
	original := h.send(t, "alice", source.ID, "news")
	if _, err := h.svc.ToggleReaction(ctx, original.ID, "bob", models.ReactionRequest{EmojiCategory: "people", EmojiName: "thumbs_up"}); err != nil {
		t.Fatalf("react failed: %v", err)
	}
	if _, err := h.svc.MarkRead(ctx, source.ID, "bob"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	if _, err := h.svc.EditMessage(ctx, original.ID, "alice", "breaking news"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	fwd, err := h.svc.ForwardMessage(ctx, original.ID, target.ID, "bob")
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if fwd.ID == original.ID || fwd.ConversationID != target.ID || fwd.SenderID != "bob" {
		t.Fatalf("unexpected forwarded identity: %+v", fwd)
	}
	if fwd.Content != "breaking news" || len(fwd.Reactions) != 0 || len(fwd.ReadBy) != 0 || fwd.Edited || fwd.ReplyTo != "" {
		t.Fatalf("expected reset state, got %+v", fwd)
	}

	_, err = h.svc.ForwardMessage(ctx, original.ID, target.ID, "carol")
	assertReason(t, err, contracts.KindForbidden, "not_participant")
	_, err = h.svc.ForwardMessage(ctx, original.ID, target.ID, "alice")
	assertReason(t, err, contracts.KindForbidden, "not_participant")
}

func TestMarkReadIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.group(t, "alice", "bob")
	for _, body := range []string{"a", "b", "c"} {
		h.send(t, "alice", conv.ID, body)
	}
	h.send(t, "bob", conv.ID, "mine")

	marked, err := h.svc.MarkRead(ctx, conv.ID, "bob")
	if err != nil || marked != 3 {
		t.Fatalf("expected 3 marked, got %d err=%v", marked, err)
	}
	marked, err = h.svc.MarkRead(ctx, conv.ID, "bob")
	if err != nil || marked != 0 {
		t.Fatalf("expected repeat to mark nothing, got %d err=%v", marked, err)
	}
	if h.rec.count(models.EventMessagesRead) != 1 {
		t.Fatalf("expected one messages_read event, got %d", h.rec.count(models.EventMessagesRead))
	}

	page, err := h.svc.ListMessages(ctx, conv.ID, "alice", 0, time.Time{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, msg := range page {
		receipts := 0
		for _, r := range msg.ReadBy {
			if r.UserID == "bob" {
				receipts++
			}
		}
		want := 1
		if msg.SenderID == "bob" {
			want = 0
		}
		if receipts != want {
			t.Fatalf("message %s: expected %d receipts for bob, got %d", msg.ID, want, receipts)
		}
	}
}

func TestConcurrentMarkReadCountsOnce(t *testing.T) {
	h := newHarness(t)
	conv := h.group(t, "alice", "bob")
	for i := 0; i < 5; i++ {
		h.send(t, "alice", conv.ID, fmt.Sprintf("m%d", i))
	}
	var total atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := h.svc.MarkRead(context.Background(), conv.ID, "bob")
			if err != nil {
				t.Errorf("mark read failed: %v", err)
			}
			total.Add(int64(n))
		}()
	}
	wg.Wait()
	if total.Load() != 5 {
		t.Fatalf("expected 5 receipts across callers, got %d", total.Load())
	}
}

func TestPinRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.group(t, "alice", "bob")
	other := h.group(t, "alice", "carol")
	msg := h.send(t, "bob", conv.ID, "important")
	foreign := h.send(t, "alice", other.ID, "elsewhere")

	_, err := h.svc.PinMessage(ctx, conv.ID, msg.ID, "bob")
	assertReason(t, err, contracts.KindForbidden, "admin_required")
	_, err = h.svc.PinMessage(ctx, conv.ID, foreign.ID, "alice")
	assertReason(t, err, contracts.KindBadRequest, "message_not_in_conversation")
	_, err = h.svc.PinMessage(ctx, conv.ID, "msg_missing", "alice")
	assertReason(t, err, contracts.KindNotFound, "message_not_found")

	for i := 0; i < 2; i++ {
		pinned, err := h.svc.PinMessage(ctx, conv.ID, msg.ID, "alice")
		if err != nil {
			t.Fatalf("pin failed: %v", err)
		}
		if len(pinned.PinnedMessages) != 1 {
			t.Fatalf("expected pins to be a set, got %v", pinned.PinnedMessages)
		}
	}
	if h.rec.count(models.EventMessagePinned) != 1 {
		t.Fatalf("expected a single message_pinned event, got %d", h.rec.count(models.EventMessagePinned))
	}

	direct := h.direct(t, "alice", "dave")
	dm := h.send(t, "dave", direct.ID, "hey")
	if _, err := h.svc.PinMessage(ctx, direct.ID, dm.ID, "alice"); err != nil {
		t.Fatalf("direct participants may pin: %v", err)
	}
	h.settings(t, privacymodel.PrivacySettings{UserID: "dave", BlockedUsers: []string{"alice"}})
	_, err = h.svc.UnpinMessage(ctx, direct.ID, dm.ID, "alice")
	assertReason(t, err, contracts.KindForbidden, string(privacymodel.ReasonBlocked))
}

func TestStarsAreIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := h.svc.StarMessage(ctx, "msg_1", "alice"); err != nil {
			t.Fatalf("star failed: %v", err)
		}
	}
	stars, err := h.svc.ListStarred(ctx, "alice")
	if err != nil || len(stars) != 1 {
		t.Fatalf("expected one star, got %+v err=%v", stars, err)
	}
	for i := 0; i < 2; i++ {
		if err := h.svc.UnstarMessage(ctx, "msg_1", "alice"); err != nil {
			t.Fatalf("unstar failed: %v", err)
		}
	}
	if err := h.svc.StarMessage(ctx, " ", "alice"); !errors.Is(err, contracts.ErrInvalidParams) {
		t.Fatalf("expected invalid params, got %v", err)
	}
}

func TestListMessagesRequiresParticipant(t *testing.T) {
	h := newHarness(t)
	conv := h.group(t, "alice", "bob")
	h.send(t, "alice", conv.ID, "hi")
	_, err := h.svc.ListMessages(context.Background(), conv.ID, "mallory", 10, time.Time{})
	assertReason(t, err, contracts.KindForbidden, "not_participant")
}
