package eventbridge

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kingrea/greenlight/internal/pipeline"
)

const (
	defaultSubscriberCapacity = 64
	defaultReplayLimit        = 32
)

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// Router fans pipeline events out to stream subscribers. Each subscriber owns
// a bounded channel; on overflow a stage event is dropped before any terminal
// run event is, and the surviving events keep their order. The most recent events are replayed to late
// subscribers so a client attaching mid-run sees where the run is.
type Router struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	replay      []pipeline.Event
	channelSize int
	replayLimit int
	logger      *slog.Logger
}

// Subscription represents an active event stream.
type Subscription struct {
	Events <-chan pipeline.Event
	cancel func()
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewRouter constructs a router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		subscribers: map[*subscriber]struct{}{},
		channelSize: defaultSubscriberCapacity,
		replayLimit: defaultReplayLimit,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RouterWithLogger injects a logger for drop diagnostics.
func RouterWithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// RouterWithSubscriberCapacity overrides the buffered channel size per subscriber.
func RouterWithSubscriberCapacity(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.channelSize = n
		}
	}
}

// RouterWithReplayLimit overrides how many recent events late subscribers
// receive. Zero disables replay.
func RouterWithReplayLimit(n int) RouterOption {
	return func(r *Router) {
		if n >= 0 {
			r.replayLimit = n
		}
	}
}

// Subscribe registers a new stream.
func (r *Router) Subscribe() Subscription {
	sub := newSubscriber(r.channelSize, r.logger)
	r.mu.Lock()
	r.subscribers[sub] = struct{}{}
	replay := append([]pipeline.Event(nil), r.replay...)
	r.mu.Unlock()
	for _, event := range replay {
		sub.deliver(event)
	}
	return Subscription{
		Events: sub.channel(),
		cancel: func() { r.removeSubscriber(sub) },
	}
}

// Subscribers reports how many streams are attached.
func (r *Router) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// OnEvent satisfies pipeline.Observer.
func (r *Router) OnEvent(_ context.Context, event pipeline.Event) {
	r.Route(event)
}

// Route delivers event to every subscriber and records it for replay.
func (r *Router) Route(event pipeline.Event) {
	r.mu.Lock()
	if r.replayLimit > 0 {
		if event.Type == pipeline.EventRunStart {
			// A new run makes the previous run's events noise for late joiners.
			r.replay = r.replay[:0]
		}
		if len(r.replay) >= r.replayLimit {
			r.replay = r.replay[1:]
		}
		r.replay = append(r.replay, event)
	}
	subs := make([]*subscriber, 0, len(r.subscribers))
	for sub := range r.subscribers {
		subs = append(subs, sub)
	}
	r.mu.Unlock()
	for _, sub := range subs {
		sub.deliver(event)
	}
}

// Close detaches every subscriber.
func (r *Router) Close() {
	r.mu.Lock()
	subs := r.subscribers
	r.subscribers = map[*subscriber]struct{}{}
	r.mu.Unlock()
	for sub := range subs {
		sub.close()
	}
}

func (r *Router) removeSubscriber(sub *subscriber) {
	r.mu.Lock()
	delete(r.subscribers, sub)
	r.mu.Unlock()
	sub.close()
}

type subscriber struct {
	ch     chan pipeline.Event
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func newSubscriber(capacity int, logger *slog.Logger) *subscriber {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}
	return &subscriber{ch: make(chan pipeline.Event, capacity), logger: logger}
}

func (s *subscriber) channel() <-chan pipeline.Event {
	return s.ch
}

// deliver never blocks. On overflow the queue is drained, one event is
// evicted by dropVictim and the rest are put back in their original order.
// The lock keeps close and the refill from interleaving; readers only ever
// remove, so the refill cannot block.
func (s *subscriber) deliver(event pipeline.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- event:
		return
	default:
	}
	queued := make([]pipeline.Event, 0, cap(s.ch)+1)
drain:
	for {
		select {
		case e := <-s.ch:
			queued = append(queued, e)
		default:
			break drain
		}
	}
	queued = append(queued, event)
	if len(queued) > cap(s.ch) {
		victim := dropVictim(queued)
		s.logDrop(queued[victim], "queue overflow")
		queued = append(queued[:victim], queued[victim+1:]...)
	}
	for _, e := range queued {
		s.ch <- e
	}
}

func (s *subscriber) logDrop(event pipeline.Event, reason string) {
	s.logger.Debug("eventbridge: dropped event", "type", event.Type, "stage", event.Stage, "reason", reason)
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// dropVictim picks the event to evict: the oldest stage.start, else the
// oldest non-terminal event, else the oldest event.
func dropVictim(queued []pipeline.Event) int {
	for i, e := range queued {
		if isPreferredDrop(e.Type) {
			return i
		}
	}
	for i, e := range queued {
		if !e.Type.Terminal() {
			return i
		}
	}
	return 0
}

// stage.start carries no artifact, so it is the cheapest event to lose.
func isPreferredDrop(kind pipeline.EventType) bool {
	return kind == pipeline.EventStageStart
}
