package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/pkg/models"
)

type memStore struct {
	mu    sync.Mutex
	items []models.Notification
	err   error
}

func (s *memStore) AppendNotification(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, n)
	return nil
}

func (s *memStore) ListNotifications(_ context.Context, recipientID string, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, 0)
	for i := len(s.items) - 1; i >= 0 && len(out) < limit; i-- {
		if s.items[i].RecipientID == recipientID {
			out = append(out, s.items[i])
		}
	}
	return out, nil
}

type prefsFunc func(recipientID, eventType string) (bool, error)

func (f prefsFunc) ShouldNotify(_ context.Context, recipientID, eventType string) (bool, error) {
	return f(recipientID, eventType)
}

type directory map[string]models.UserProfile

func (d directory) GetUser(_ context.Context, userID string) (models.UserProfile, bool, error) {
	u, ok := d[userID]
	return u, ok, nil
}

type outcomes struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomes) NotificationOutcome(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[outcome]++
}

func newTestDispatcher(store *memStore, prefs Preferences, counters *outcomes) *Dispatcher {
	var seq int
	var mu sync.Mutex
	return NewDispatcher(Deps{
		Store:       store,
		Preferences: prefs,
		Directory:   directory{"alice": {ID: "alice", Username: "Alice"}},
		GenerateID: func(prefix string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("%s_%d", prefix, seq), nil
		},
		Now:      func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
		Counters: counters,
	}, Options{QueueSize: 16, Workers: 2, ActionBaseURL: "https://app.example.com/"})
}

func TestDispatcherSkipsActorAndHonorsPreferences(t *testing.T) {
	store := &memStore{}
	counters := &outcomes{}
	d := newTestDispatcher(store, prefsFunc(func(recipientID, eventType string) (bool, error) {
		if eventType != string(models.NotificationMessage) {
			t.Errorf("unexpected event type %q", eventType)
		}
		return recipientID != "carol", nil
	}), counters)
	d.Start(context.Background())
	d.Dispatch(models.NotificationRequest{
		ActorID:        "alice",
		RecipientIDs:   []string{"alice", "bob", "carol"},
		Type:           models.NotificationMessage,
		EntityType:     "message",
		EntityID:       "m1",
		ConversationID: "c1",
	})
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if len(store.items) != 1 {
		t.Fatalf("expected one notification, got %d", len(store.items))
	}
	n := store.items[0]
	if n.RecipientID != "bob" || n.SenderID != "alice" {
		t.Fatalf("unexpected recipient/sender: %+v", n)
	}
	if n.Message != "Alice sent you a message" {
		t.Fatalf("unexpected message %q", n.Message)
	}
	if n.ActionURL != "https://app.example.com/messages/c1" {
		t.Fatalf("unexpected action url %q", n.ActionURL)
	}
	if counters.counts[OutcomeStored] != 1 || counters.counts[OutcomeSuppressed] != 1 {
		t.Fatalf("unexpected outcomes: %v", counters.counts)
	}
}

func TestDispatcherSwallowsStoreFailures(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	counters := &outcomes{}
	d := newTestDispatcher(store, prefsFunc(func(string, string) (bool, error) { return true, nil }), counters)
	d.Start(context.Background())
	d.Dispatch(models.NotificationRequest{ActorID: "zed", RecipientIDs: []string{"bob"}, Type: models.NotificationReaction})
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if counters.counts[OutcomeFailed] != 1 {
		t.Fatalf("expected failure to be counted, got %v", counters.counts)
	}
}

func TestHumanMessageFallsBackForUnknownActor(t *testing.T) {
	store := &memStore{}
	d := newTestDispatcher(store, prefsFunc(func(string, string) (bool, error) { return true, nil }), &outcomes{})
	d.Start(context.Background())
	d.Dispatch(models.NotificationRequest{ActorID: "ghost", RecipientIDs: []string{"bob"}, Type: models.NotificationGroupAdded, ConversationID: "g1"})
	_ = d.Close(context.Background())
	if len(store.items) != 1 || store.items[0].Message != "Someone added you to a group" {
		t.Fatalf("unexpected notifications: %+v", store.items)
	}
}

func TestListRequiresActor(t *testing.T) {
	d := newTestDispatcher(&memStore{}, prefsFunc(func(string, string) (bool, error) { return true, nil }), nil)
	if _, err := d.List(context.Background(), " ", 10); !errors.Is(err, contracts.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}
