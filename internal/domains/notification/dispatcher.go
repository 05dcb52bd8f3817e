package notification

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/internal/platform/asyncqueue"
	"aim-chat/conversation-core/pkg/models"
)

// Preferences is the slice of the access gate the dispatcher needs.
type Preferences interface {
	ShouldNotify(ctx context.Context, recipientID, eventType string) (bool, error)
}

type Counters interface {
	NotificationOutcome(outcome string)
}

const (
	OutcomeStored     = "stored"
	OutcomeSuppressed = "suppressed"
	OutcomeDropped    = "dropped"
	OutcomeFailed     = "failed"
)

type Deps struct {
	Store       contracts.NotificationStore
	Preferences Preferences
	Directory   contracts.UserDirectory
	GenerateID  func(prefix string) (string, error)
	Now         func() time.Time
	Logger      *slog.Logger
	Counters    Counters
}

type Options struct {
	QueueSize     int
	Workers       int
	ActionBaseURL string
}

// Dispatcher persists notifications off the request path. Failures are
// logged and counted and never reach the caller.
type Dispatcher struct {
	deps    Deps
	baseURL string
	queue   *asyncqueue.Queue[models.NotificationRequest]
}

func NewDispatcher(deps Deps, opts Options) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	d := &Dispatcher{
		deps:    deps,
		baseURL: strings.TrimRight(strings.TrimSpace(opts.ActionBaseURL), "/"),
	}
	d.queue = asyncqueue.New(asyncqueue.Options[models.NotificationRequest]{
		Size:    opts.QueueSize,
		Workers: opts.Workers,
		Handle:  d.process,
		OnDrop: func(req models.NotificationRequest, err error) {
			d.count(OutcomeDropped)
			d.deps.Logger.Warn("notification dropped", "type", string(req.Type), "actor_id", req.ActorID, "error", err.Error())
		},
	})
	return d
}

func (d *Dispatcher) Start(ctx context.Context) { d.queue.Start(ctx) }

func (d *Dispatcher) Close(ctx context.Context) error { return d.queue.Close(ctx) }

// Dispatch enqueues req and returns immediately.
func (d *Dispatcher) Dispatch(req models.NotificationRequest) {
	if len(req.RecipientIDs) == 0 {
		return
	}
	req.RecipientIDs = append([]string(nil), req.RecipientIDs...)
	_ = d.queue.Enqueue(req)
}

func (d *Dispatcher) process(ctx context.Context, req models.NotificationRequest) {
	actorName := d.displayName(ctx, req.ActorID)
	for _, recipientID := range models.NormalizeIDs(req.RecipientIDs) {
		if recipientID == req.ActorID {
			continue
		}
		d.deliver(ctx, req, recipientID, actorName)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, req models.NotificationRequest, recipientID, actorName string) {
	want, err := d.deps.Preferences.ShouldNotify(ctx, recipientID, string(req.Type))
	if err != nil {
		d.fail("notification preference lookup failed", req, recipientID, err)
		return
	}
	if !want {
		d.count(OutcomeSuppressed)
		return
	}
	id, err := d.deps.GenerateID("notif")
	if err != nil {
		d.fail("notification id generation failed", req, recipientID, err)
		return
	}
	n := models.Notification{
		ID:          id,
		RecipientID: recipientID,
		SenderID:    req.ActorID,
		Type:        req.Type,
		Message:     HumanMessage(req.Type, actorName),
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		ActionURL:   d.actionURL(req),
		CreatedAt:   d.deps.Now(),
	}
	if err := d.deps.Store.AppendNotification(ctx, n); err != nil {
		d.fail("notification persist failed", req, recipientID, err)
		return
	}
	d.count(OutcomeStored)
}

func (d *Dispatcher) fail(msg string, req models.NotificationRequest, recipientID string, err error) {
	d.count(OutcomeFailed)
	d.deps.Logger.Error(msg, "type", string(req.Type), "recipient_id", recipientID, "error", err.Error())
}

func (d *Dispatcher) count(outcome string) {
	if d.deps.Counters != nil {
		d.deps.Counters.NotificationOutcome(outcome)
	}
}

// displayName falls back to a neutral label; a missing profile must not
// suppress the notification.
func (d *Dispatcher) displayName(ctx context.Context, userID string) string {
	if d.deps.Directory == nil {
		return "Someone"
	}
	user, found, err := d.deps.Directory.GetUser(ctx, userID)
	if err != nil || !found || strings.TrimSpace(user.Username) == "" {
		return "Someone"
	}
	return user.Username
}

func (d *Dispatcher) actionURL(req models.NotificationRequest) string {
	if req.ConversationID == "" {
		return ""
	}
	return d.baseURL + "/messages/" + req.ConversationID
}

func HumanMessage(t models.NotificationType, actorName string) string {
	switch t {
	case models.NotificationMessage:
		return actorName + " sent you a message"
	case models.NotificationReaction:
		return actorName + " reacted to your message"
	case models.NotificationGroupAdded:
		return actorName + " added you to a group"
	default:
		return actorName + " sent you a notification"
	}
}

// List returns the actor's notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, actorID string, limit int) (_ []models.Notification, err error) {
	actorID, err = contracts.RequireActor(actorID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out, err := d.deps.Store.ListNotifications(ctx, actorID, limit)
	if err != nil {
		return nil, contracts.Internal(err)
	}
	return out, nil
}
