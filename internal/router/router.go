// Package router implements the dispatch router: the single authority that
// turns raw provider events from the three delivery channels into at most one
// NavigationIntent per distinct message.
package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
)

// DefaultTarget is the screen a message routes to when its payload carries no
// "screen" key.
const DefaultTarget = "home"

// Config holds the router's tunables.
type Config struct {
	// DefaultTarget is the fallback screen for payloads without a "screen"
	// key. Empty means DefaultTarget.
	DefaultTarget string
	// SeenCapacity bounds the in-memory seen set when no external SeenStore
	// is provided. Zero means DefaultSeenCapacity.
	SeenCapacity int
}

// Router deduplicates inbound messages by id and emits NavigationIntents to
// the attached consumer. One explicitly constructed instance is owned by
// application startup code and passed by reference to whoever feeds it.
type Router struct {
	seen          routing.SeenStore
	defaultTarget string
	logger        *slog.Logger

	mu        sync.Mutex
	consumer  routing.IntentConsumer
	attachGen uint64
}

// New creates a Router. Pass a nil seen store to use the in-memory SeenSet
// bounded by cfg.SeenCapacity.
func New(cfg Config, seen routing.SeenStore, logger *slog.Logger) (*Router, error) {
	if cfg.DefaultTarget == "" {
		cfg.DefaultTarget = DefaultTarget
	}
	if seen == nil {
		set, err := NewSeenSet(cfg.SeenCapacity)
		if err != nil {
			return nil, err
		}
		seen = set
	}
	return &Router{
		seen:          seen,
		defaultTarget: cfg.DefaultTarget,
		logger:        logger.With("component", "DispatchRouter"),
	}, nil
}

// Attach registers the intent consumer and returns a handle that detaches it.
// Attach must happen before any cold-start event is delivered, otherwise that
// intent is dropped.
func (r *Router) Attach(consumer routing.IntentConsumer) routing.Subscription {
	r.mu.Lock()
	r.consumer = consumer
	r.attachGen++
	gen := r.attachGen
	r.mu.Unlock()
	return &consumerSub{router: r, gen: gen}
}

// OnForeground handles a message that arrived while the app is actively
// running. It never emits a NavigationIntent: foreground arrival does not
// imply user intent to navigate. It reports whether the id is still unseen so
// the caller can decide to surface an in-app banner; the seen set is not
// mutated here.
func (r *Router) OnForeground(ctx context.Context, msg routing.InboundMessage) bool {
	seen, err := r.seen.Seen(ctx, msg.ID)
	if err != nil {
		r.logger.Warn("Seen store lookup failed; treating message as fresh", "msg_id", msg.ID, "err", err)
		return true
	}
	if seen {
		r.logger.Debug("Foreground message already dispatched", "msg_id", msg.ID)
	}
	return !seen
}

// OnTapOpened handles a notification the user tapped from the background.
// It returns true if a NavigationIntent was emitted, false if the id had
// already been dispatched (duplicate delivery from the OS is a no-op).
func (r *Router) OnTapOpened(ctx context.Context, msg routing.InboundMessage) bool {
	return r.dispatch(ctx, msg)
}

// OnColdStart handles the launch message of a process started by a
// notification tap. A nil message is the normal plain-launch case, not an
// error. Otherwise it behaves exactly like OnTapOpened.
func (r *Router) OnColdStart(ctx context.Context, msg *routing.InboundMessage) bool {
	if msg == nil {
		r.logger.Debug("No cold-start message; nothing to dispatch")
		return false
	}
	return r.dispatch(ctx, *msg)
}

// Bind subscribes the router to all three channels of a MessageSource and
// consumes the initial launch message exactly once. Call after Attach: the
// consumer must be in place before the cold-start intent fires.
func (r *Router) Bind(ctx context.Context, src routing.MessageSource) routing.Subscription {
	fg := src.OnForegroundMessage(func(msg routing.InboundMessage) {
		r.OnForeground(ctx, msg)
	})
	tap := src.OnTapOpenedFromBackground(func(msg routing.InboundMessage) {
		r.OnTapOpened(ctx, msg)
	})

	initial, err := src.GetInitialLaunchMessage(ctx)
	if err != nil {
		r.logger.Warn("Failed to read initial launch message; skipping", "err", err)
		initial = nil
	}
	r.OnColdStart(ctx, initial)

	return &bindSub{subs: []routing.Subscription{fg, tap}}
}

// dispatch is the UNSEEN -> DISPATCHED transition. The MarkIfNew call is the
// single serialization point: whichever concurrent caller observes the id as
// new wins, every other caller becomes a no-op.
func (r *Router) dispatch(ctx context.Context, msg routing.InboundMessage) bool {
	if msg.ID == "" {
		// Without a provider id there is nothing to deduplicate on. Emit
		// anyway: dropping the event would lose a real user tap.
		r.logger.Warn("Inbound message has no id; dispatching without dedup")
		return r.emit(ctx, msg)
	}

	fresh, err := r.seen.MarkIfNew(ctx, msg.ID)
	if err != nil {
		r.logger.Warn("Seen store unavailable; dispatching without dedup", "msg_id", msg.ID, "err", err)
		fresh = true
	}
	if !fresh {
		r.logger.Debug("Duplicate delivery suppressed", "msg_id", msg.ID, "channel", msg.ReceivedVia)
		return false
	}
	return r.emit(ctx, msg)
}

func (r *Router) emit(ctx context.Context, msg routing.InboundMessage) bool {
	intent := msg.Intent(r.defaultTarget)

	r.mu.Lock()
	consumer := r.consumer
	r.mu.Unlock()

	if consumer == nil {
		r.logger.Warn("No consumer attached; intent dropped", "msg_id", msg.ID, "target", intent.Target)
		return false
	}

	// Fire and forget: no acknowledgment, no retry.
	if err := consumer.HandleIntent(ctx, intent); err != nil {
		r.logger.Error("Intent consumer failed", "msg_id", msg.ID, "target", intent.Target, "err", err)
	}
	r.logger.Info("Intent dispatched", "msg_id", msg.ID, "target", intent.Target, "channel", msg.ReceivedVia)
	return true
}

// detach clears the consumer, but only if no later Attach replaced it.
func (r *Router) detach(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attachGen == gen {
		r.consumer = nil
	}
}

type consumerSub struct {
	once   sync.Once
	router *Router
	gen    uint64
}

func (s *consumerSub) Unsubscribe() {
	s.once.Do(func() { s.router.detach(s.gen) })
}

type bindSub struct {
	once sync.Once
	subs []routing.Subscription
}

func (s *bindSub) Unsubscribe() {
	s.once.Do(func() {
		for _, sub := range s.subs {
			sub.Unsubscribe()
		}
	})
}
