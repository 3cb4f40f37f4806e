package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
)

// Router defines the subset of the dispatch router the pipeline drives.
// This interface allows us to mock the router for unit testing.
type Router interface {
	OnForeground(ctx context.Context, msg routing.InboundMessage) bool
	OnTapOpened(ctx context.Context, msg routing.InboundMessage) bool
	OnColdStart(ctx context.Context, msg *routing.InboundMessage) bool
}

// NewProcessor creates the logic that fans each normalized event to the
// router operation matching its delivery channel.
//
// The processor always returns nil: duplicate suppression makes a Pub/Sub
// redelivery harmless, so there is nothing worth a Nack/retry here.
func NewProcessor(router Router, logger *slog.Logger) messagepipeline.StreamProcessor[routing.InboundMessage] {
	return func(ctx context.Context, original messagepipeline.Message, msg *routing.InboundMessage) error {
		procLogger := logger.With(
			"msg_id", msg.ID,
			"channel", msg.ReceivedVia,
			"pubsub_msg_id", original.ID,
		)

		switch msg.ReceivedVia {
		case routing.ChannelForeground:
			// Foreground arrival never navigates. Surfacing a banner is the
			// device shell's concern; we only report freshness.
			if fresh := router.OnForeground(ctx, *msg); fresh {
				procLogger.Debug("Foreground message is fresh")
			} else {
				procLogger.Debug("Foreground message already dispatched")
			}

		case routing.ChannelBackgroundTap:
			if emitted := router.OnTapOpened(ctx, *msg); !emitted {
				procLogger.Info("Duplicate tap suppressed")
			}

		case routing.ChannelColdStart:
			if emitted := router.OnColdStart(ctx, msg); !emitted {
				procLogger.Info("Cold-start replay suppressed")
			}
		}

		return nil
	}
}
