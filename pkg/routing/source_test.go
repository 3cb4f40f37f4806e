package routing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
)

func TestChannelSource(t *testing.T) {
	ctx := context.Background()

	t.Run("Emit reaches registered callbacks", func(t *testing.T) {
		source := routing.NewChannelSource()

		var foreground, taps []string
		source.OnForegroundMessage(func(m routing.InboundMessage) {
			foreground = append(foreground, m.ID)
		})
		source.OnTapOpenedFromBackground(func(m routing.InboundMessage) {
			taps = append(taps, m.ID)
		})

		source.EmitForeground(routing.InboundMessage{ID: "fg-1"})
		source.EmitTapOpened(routing.InboundMessage{ID: "tap-1"})

		assert.Equal(t, []string{"fg-1"}, foreground)
		assert.Equal(t, []string{"tap-1"}, taps)
	})

	t.Run("Unsubscribe tears down deterministically", func(t *testing.T) {
		source := routing.NewChannelSource()

		var got []string
		sub := source.OnTapOpenedFromBackground(func(m routing.InboundMessage) {
			got = append(got, m.ID)
		})

		source.EmitTapOpened(routing.InboundMessage{ID: "before"})
		sub.Unsubscribe()
		sub.Unsubscribe() // second call is a no-op
		source.EmitTapOpened(routing.InboundMessage{ID: "after"})

		assert.Equal(t, []string{"before"}, got)
	})

	t.Run("Initial launch message defaults to nil", func(t *testing.T) {
		source := routing.NewChannelSource()

		msg, err := source.GetInitialLaunchMessage(ctx)
		require.NoError(t, err)
		assert.Nil(t, msg)

		source.SetInitialLaunchMessage(&routing.InboundMessage{ID: "launch-1"})
		msg, err = source.GetInitialLaunchMessage(ctx)
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, "launch-1", msg.ID)
	})
}
