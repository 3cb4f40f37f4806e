// Package pipeline contains the message processing components that feed the
// dispatch router from the ingestion subscription.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
)

// InboundMessageTransformer is a dataflow Transformer that safely unmarshals
// and validates a raw event payload into a routing.InboundMessage.
//
// Only the envelope is validated here: a message that parses but carries an
// incomplete payload map is NOT rejected, because the router degrades it to
// the default target. Rejection (skip=true) is reserved for events the router
// could never act on, so the StreamingService can Nack them toward the DLQ.
func InboundMessageTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*routing.InboundMessage, bool, error) {
	var inbound routing.InboundMessage

	if err := json.Unmarshal(msg.Payload, &inbound); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal inbound message from message %s: %w", msg.ID, err)
	}

	if inbound.ID == "" {
		return nil, true, fmt.Errorf("message %s has no provider id: %w", msg.ID, routing.ErrMalformedPayload)
	}
	if !inbound.ReceivedVia.Valid() {
		return nil, true, fmt.Errorf("message %s has unknown channel %q: %w", msg.ID, inbound.ReceivedVia, routing.ErrMalformedPayload)
	}

	return &inbound, false, nil
}
