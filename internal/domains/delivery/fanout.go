package delivery

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"time"

	"aim-chat/conversation-core/internal/domains/contracts"
	"aim-chat/conversation-core/internal/platform/asyncqueue"
	"aim-chat/conversation-core/pkg/models"
)

type Counters interface {
	FanoutPublished()
	FanoutDropped()
	FanoutFailed()
}

type noopCounters struct{}

func (noopCounters) FanoutPublished() {}
func (noopCounters) FanoutDropped()   {}
func (noopCounters) FanoutFailed()    {}

type FanoutOptions struct {
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
}

// Fanout decouples request handling from event delivery. Emit enqueues and
// returns; workers hand events to the broker. Delivery is at most once.
// Each worker owns a shard of topics, so events on one topic keep their order.
type Fanout struct {
	broker   contracts.RealtimeBroker
	shards   []*asyncqueue.Queue[models.Event]
	logger   *slog.Logger
	counters Counters
	timeout  time.Duration
	now      func() time.Time
}

func NewFanout(broker contracts.RealtimeBroker, opts FanoutOptions, logger *slog.Logger, counters Counters) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	if counters == nil {
		counters = noopCounters{}
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	f := &Fanout{
		broker:   broker,
		logger:   logger,
		counters: counters,
		timeout:  opts.PublishTimeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	size := 0
	if opts.QueueSize > 0 {
		size = (opts.QueueSize + workers - 1) / workers
	}
	f.shards = make([]*asyncqueue.Queue[models.Event], workers)
	for i := range f.shards {
		f.shards[i] = asyncqueue.New(asyncqueue.Options[models.Event]{
			Size:    size,
			Workers: 1,
			Handle:  f.publish,
			OnDrop: func(evt models.Event, err error) {
				f.counters.FanoutDropped()
				f.logger.Warn("realtime event dropped", "event", string(evt.Type), "topic_kind", topicKind(evt.Topic), "error", err.Error())
			},
		})
	}
	return f
}

func (f *Fanout) Start(ctx context.Context) {
	for _, q := range f.shards {
		q.Start(ctx)
	}
}

func (f *Fanout) Close(ctx context.Context) error {
	var errs []error
	for _, q := range f.shards {
		if err := q.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) shardFor(topic string) *asyncqueue.Queue[models.Event] {
	if len(f.shards) == 1 {
		return f.shards[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	return f.shards[h.Sum32()%uint32(len(f.shards))]
}

// Emit schedules eventType with payload for topic. It never blocks.
func (f *Fanout) Emit(topic string, eventType models.EventType, payload any) {
	_ = f.shardFor(topic).Enqueue(models.Event{
		Type:      eventType,
		Topic:     topic,
		Payload:   payload,
		Timestamp: f.now(),
	})
}

func (f *Fanout) publish(ctx context.Context, evt models.Event) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.broker.Publish(ctx, evt); err != nil {
		f.counters.FanoutFailed()
		f.logger.Error("realtime publish failed", "event", string(evt.Type), "topic_kind", topicKind(evt.Topic), "error", err.Error())
		return
	}
	f.counters.FanoutPublished()
}

// topicKind keeps ids out of logs.
func topicKind(topic string) string {
	for i := 0; i < len(topic); i++ {
		if topic[i] == ':' {
			return topic[:i]
		}
	}
	return "unknown"
}
