package router_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-dispatch-router/internal/router"
	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// capturingConsumer records every intent it receives. Safe for concurrent use.
type capturingConsumer struct {
	mu      sync.Mutex
	intents []routing.NavigationIntent
	err     error
}

func (c *capturingConsumer) HandleIntent(_ context.Context, intent routing.NavigationIntent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents = append(c.intents, intent)
	return c.err
}

func (c *capturingConsumer) Intents() []routing.NavigationIntent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]routing.NavigationIntent(nil), c.intents...)
}

// erroringSeenStore simulates a dedup backend outage.
type erroringSeenStore struct{}

func (erroringSeenStore) MarkIfNew(context.Context, string) (bool, error) {
	return false, errors.New("store down")
}
func (erroringSeenStore) Seen(context.Context, string) (bool, error) {
	return false, errors.New("store down")
}

func newRouter(t *testing.T, cfg router.Config) (*router.Router, *capturingConsumer) {
	t.Helper()
	r, err := router.New(cfg, nil, newTestLogger())
	require.NoError(t, err)
	consumer := &capturingConsumer{}
	r.Attach(consumer)
	return r, consumer
}

func TestRouter_TapOpened(t *testing.T) {
	ctx := context.Background()

	t.Run("Duplicate tap emits exactly one intent", func(t *testing.T) {
		r, consumer := newRouter(t, router.Config{})
		msg := routing.InboundMessage{
			ID:          "msg-1",
			Payload:     map[string]string{"screen": "chat", "chatId": "123"},
			ReceivedVia: routing.ChannelBackgroundTap,
		}

		assert.True(t, r.OnTapOpened(ctx, msg))
		assert.False(t, r.OnTapOpened(ctx, msg))

		require.Len(t, consumer.Intents(), 1)
	})

	t.Run("Payload maps screen key to target and keeps the rest as params", func(t *testing.T) {
		r, consumer := newRouter(t, router.Config{})
		msg := routing.InboundMessage{
			ID:          "msg-2",
			Payload:     map[string]string{"screen": "chat", "chatId": "123"},
			ReceivedVia: routing.ChannelBackgroundTap,
		}

		require.True(t, r.OnTapOpened(ctx, msg))

		intents := consumer.Intents()
		require.Len(t, intents, 1)
		assert.Equal(t, "msg-2", intents[0].SourceMessageID)
		assert.Equal(t, "chat", intents[0].Target)
		assert.Equal(t, map[string]string{"chatId": "123"}, intents[0].Params)
	})

	t.Run("Empty payload degrades to the default target", func(t *testing.T) {
		r, consumer := newRouter(t, router.Config{DefaultTarget: "inbox"})
		msg := routing.InboundMessage{ID: "msg-3", ReceivedVia: routing.ChannelBackgroundTap}

		require.True(t, r.OnTapOpened(ctx, msg))

		intents := consumer.Intents()
		require.Len(t, intents, 1)
		assert.Equal(t, "inbox", intents[0].Target)
		assert.Empty(t, intents[0].Params)
	})

	t.Run("Seen store failure dispatches without dedup", func(t *testing.T) {
		r, err := router.New(router.Config{}, erroringSeenStore{}, newTestLogger())
		require.NoError(t, err)
		consumer := &capturingConsumer{}
		r.Attach(consumer)

		msg := routing.InboundMessage{ID: "msg-4", ReceivedVia: routing.ChannelBackgroundTap}
		assert.True(t, r.OnTapOpened(ctx, msg))
		require.Len(t, consumer.Intents(), 1)
	})

	t.Run("Consumer error is swallowed, emission still counts", func(t *testing.T) {
		r, err := router.New(router.Config{}, nil, newTestLogger())
		require.NoError(t, err)
		consumer := &capturingConsumer{err: errors.New("publish failed")}
		r.Attach(consumer)

		msg := routing.InboundMessage{ID: "msg-5", ReceivedVia: routing.ChannelBackgroundTap}
		assert.True(t, r.OnTapOpened(ctx, msg))
		// A duplicate is still suppressed: the id was marked before emission.
		assert.False(t, r.OnTapOpened(ctx, msg))
	})
}

func TestRouter_ColdStart(t *testing.T) {
	ctx := context.Background()

	t.Run("Nil launch message is a silent no-op", func(t *testing.T) {
		r, consumer := newRouter(t, router.Config{})
		assert.False(t, r.OnColdStart(ctx, nil))
		assert.Empty(t, consumer.Intents())
	})

	t.Run("Launch message behaves like a tap", func(t *testing.T) {
		r, consumer := newRouter(t, router.Config{})
		msg := &routing.InboundMessage{
			ID:          "launch-1",
			Payload:     map[string]string{"screen": "orders"},
			ReceivedVia: routing.ChannelColdStart,
		}

		assert.True(t, r.OnColdStart(ctx, msg))
		// Provider replays the same cold-start message on the next launch.
		assert.False(t, r.OnColdStart(ctx, msg))

		intents := consumer.Intents()
		require.Len(t, intents, 1)
		assert.Equal(t, "orders", intents[0].Target)
	})

	t.Run("Cold-start replay of an already tapped message is suppressed", func(t *testing.T) {
		r, consumer := newRouter(t, router.Config{})
		msg := routing.InboundMessage{ID: "dup-1", ReceivedVia: routing.ChannelBackgroundTap}

		assert.True(t, r.OnTapOpened(ctx, msg))
		replay := msg
		replay.ReceivedVia = routing.ChannelColdStart
		assert.False(t, r.OnColdStart(ctx, &replay))

		require.Len(t, consumer.Intents(), 1)
	})
}

func TestRouter_Foreground(t *testing.T) {
	ctx := context.Background()

	t.Run("Never emits and never marks", func(t *testing.T) {
		r, consumer := newRouter(t, router.Config{})
		msg := routing.InboundMessage{ID: "fg-1", ReceivedVia: routing.ChannelForeground}

		assert.True(t, r.OnForeground(ctx, msg))
		assert.Empty(t, consumer.Intents())

		// The id stays UNSEEN: a later tap on the same notification must navigate.
		tap := msg
		tap.ReceivedVia = routing.ChannelBackgroundTap
		assert.True(t, r.OnTapOpened(ctx, tap))
		require.Len(t, consumer.Intents(), 1)
	})

	t.Run("Reports already dispatched ids as stale", func(t *testing.T) {
		r, _ := newRouter(t, router.Config{})
		msg := routing.InboundMessage{ID: "fg-2", ReceivedVia: routing.ChannelBackgroundTap}

		require.True(t, r.OnTapOpened(ctx, msg))
		msg.ReceivedVia = routing.ChannelForeground
		assert.False(t, r.OnForeground(ctx, msg))
	})
}

func TestRouter_ConcurrentChannels(t *testing.T) {
	ctx := context.Background()

	t.Run("Distinct ids raced across channels emit one intent each", func(t *testing.T) {
		r, consumer := newRouter(t, router.Config{})
		m1 := routing.InboundMessage{ID: "race-1", ReceivedVia: routing.ChannelBackgroundTap}
		m2 := routing.InboundMessage{ID: "race-2", ReceivedVia: routing.ChannelColdStart}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.OnTapOpened(ctx, m1)
		}()
		go func() {
			defer wg.Done()
			r.OnColdStart(ctx, &m2)
		}()
		wg.Wait()

		intents := consumer.Intents()
		require.Len(t, intents, 2)
		ids := map[string]bool{}
		for _, it := range intents {
			ids[it.SourceMessageID] = true
		}
		assert.True(t, ids["race-1"])
		assert.True(t, ids["race-2"])
	})

	t.Run("Same id raced across channels emits exactly once", func(t *testing.T) {
		const attempts = 50
		r, consumer := newRouter(t, router.Config{})

		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			msg := routing.InboundMessage{ID: fmt.Sprintf("race-dup-%d", i)}
			wg.Add(2)
			go func() {
				defer wg.Done()
				tap := msg
				tap.ReceivedVia = routing.ChannelBackgroundTap
				r.OnTapOpened(ctx, tap)
			}()
			go func() {
				defer wg.Done()
				cold := msg
				cold.ReceivedVia = routing.ChannelColdStart
				r.OnColdStart(ctx, &cold)
			}()
		}
		wg.Wait()

		assert.Len(t, consumer.Intents(), attempts)
	})
}

func TestRouter_ConsumerLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("Intent is dropped when no consumer is attached", func(t *testing.T) {
		r, err := router.New(router.Config{}, nil, newTestLogger())
		require.NoError(t, err)

		msg := routing.InboundMessage{ID: "orphan-1", ReceivedVia: routing.ChannelColdStart}
		assert.False(t, r.OnColdStart(ctx, &msg))
	})

	t.Run("Detach stops emission deterministically", func(t *testing.T) {
		r, err := router.New(router.Config{}, nil, newTestLogger())
		require.NoError(t, err)
		consumer := &capturingConsumer{}
		sub := r.Attach(consumer)

		require.True(t, r.OnTapOpened(ctx, routing.InboundMessage{ID: "life-1"}))
		sub.Unsubscribe()
		assert.False(t, r.OnTapOpened(ctx, routing.InboundMessage{ID: "life-2"}))

		require.Len(t, consumer.Intents(), 1)
	})

	t.Run("Stale handle cannot detach a replacement consumer", func(t *testing.T) {
		r, err := router.New(router.Config{}, nil, newTestLogger())
		require.NoError(t, err)

		old := &capturingConsumer{}
		oldSub := r.Attach(old)
		replacement := &capturingConsumer{}
		r.Attach(replacement)

		oldSub.Unsubscribe()
		assert.True(t, r.OnTapOpened(ctx, routing.InboundMessage{ID: "life-3"}))
		assert.Len(t, replacement.Intents(), 1)
		assert.Empty(t, old.Intents())
	})
}

func TestRouter_BindSource(t *testing.T) {
	ctx := context.Background()

	t.Run("Bind consumes the launch message after the consumer is ready", func(t *testing.T) {
		r, consumer := newRouter(t, router.Config{})

		source := routing.NewChannelSource()
		source.SetInitialLaunchMessage(&routing.InboundMessage{
			ID:          "bind-launch",
			Payload:     map[string]string{"screen": "chat"},
			ReceivedVia: routing.ChannelColdStart,
		})

		sub := r.Bind(ctx, source)
		defer sub.Unsubscribe()

		intents := consumer.Intents()
		require.Len(t, intents, 1)
		assert.Equal(t, "chat", intents[0].Target)
	})

	t.Run("Bound channels feed the matching operations", func(t *testing.T) {
		r, consumer := newRouter(t, router.Config{})
		source := routing.NewChannelSource()
		sub := r.Bind(ctx, source)

		source.EmitForeground(routing.InboundMessage{ID: "bind-fg", ReceivedVia: routing.ChannelForeground})
		assert.Empty(t, consumer.Intents(), "foreground arrival must not navigate")

		source.EmitTapOpened(routing.InboundMessage{ID: "bind-tap", ReceivedVia: routing.ChannelBackgroundTap})
		require.Len(t, consumer.Intents(), 1)

		// After teardown the source no longer reaches the router.
		sub.Unsubscribe()
		source.EmitTapOpened(routing.InboundMessage{ID: "bind-tap-2", ReceivedVia: routing.ChannelBackgroundTap})
		assert.Len(t, consumer.Intents(), 1)
	})
}
