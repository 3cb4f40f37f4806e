// Package publish forwards dispatched NavigationIntents to the outbound
// transport consumed by device shells.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub/v2"

	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
)

// Publisher defines the subset of the Pub/Sub publish surface we use.
// This interface allows us to mock the transport for unit testing.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) (serverID string, err error)
}

// PubsubPublisher adapts a *pubsub.Publisher to the Publisher interface.
type PubsubPublisher struct {
	topic *pubsub.Publisher
}

func NewPubsubPublisher(topic *pubsub.Publisher) *PubsubPublisher {
	return &PubsubPublisher{topic: topic}
}

func (p *PubsubPublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error) {
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes})
	return result.Get(ctx)
}

// IntentPublisher is the routing.IntentConsumer the service attaches to the
// router: every dispatched intent is published as JSON to the intents topic.
// Emission is fire-and-forget end to end; a failed publish is logged by the
// router and the intent is lost, matching the no-ack, no-retry contract.
type IntentPublisher struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewIntentPublisher(publisher Publisher, logger *slog.Logger) *IntentPublisher {
	return &IntentPublisher{
		publisher: publisher,
		logger:    logger.With("component", "IntentPublisher"),
	}
}

func (p *IntentPublisher) HandleIntent(ctx context.Context, intent routing.NavigationIntent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent for message %s: %w", intent.SourceMessageID, err)
	}

	serverID, err := p.publisher.Publish(ctx, payload, map[string]string{
		"target":            intent.Target,
		"source_message_id": intent.SourceMessageID,
	})
	if err != nil {
		return fmt.Errorf("failed to publish intent for message %s: %w", intent.SourceMessageID, err)
	}

	p.logger.Debug("Intent published", "server_id", serverID, "target", intent.Target)
	return nil
}

var _ routing.IntentConsumer = (*IntentPublisher)(nil)
