package routing

import (
	"context"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// IntentConsumer accepts the NavigationIntents the router emits and performs
// the actual screen transition (or forwards the intent onward). Emission is
// fire-and-forget: the router logs a returned error but never retries.
type IntentConsumer interface {
	HandleIntent(ctx context.Context, intent NavigationIntent) error
}

// IntentConsumerFunc adapts a plain function to the IntentConsumer interface.
type IntentConsumerFunc func(ctx context.Context, intent NavigationIntent) error

func (f IntentConsumerFunc) HandleIntent(ctx context.Context, intent NavigationIntent) error {
	return f(ctx, intent)
}

// Subscription is a handle returned at registration time, enabling
// deterministic teardown of a callback.
type Subscription interface {
	Unsubscribe()
}

// MessageSource exposes the three registration points matching the delivery
// channels. GetInitialLaunchMessage returns nil when the process was not
// started by a notification tap; that is a normal case, not an error.
type MessageSource interface {
	OnForegroundMessage(fn func(InboundMessage)) Subscription
	OnTapOpenedFromBackground(fn func(InboundMessage)) Subscription
	GetInitialLaunchMessage(ctx context.Context) (*InboundMessage, error)
}

// SeenStore is a bounded set of message identifiers that have already been
// dispatched. An identifier present in the store never produces a second
// NavigationIntent until it is evicted by the store's capacity or age bound.
type SeenStore interface {
	// MarkIfNew atomically checks membership and inserts the id. It returns
	// true if the id was not present (the caller wins the dispatch), false if
	// it was already marked. The check-and-insert is a single step: this is
	// the serialization point for concurrent delivery across channels.
	MarkIfNew(ctx context.Context, id string) (bool, error)

	// Seen reports membership without mutating the store.
	Seen(ctx context.Context, id string) (bool, error)
}

// PermissionStatus is the user's answer to the OS notification prompt.
type PermissionStatus string

const (
	PermissionUndetermined PermissionStatus = "undetermined"
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
)

// TokenProvider is the bridge to the external push provider's token and topic
// surface. The router itself never calls it; it is bootstrapped independently.
type TokenProvider interface {
	// RequestPermission resolves the current notification permission status.
	RequestPermission(ctx context.Context) (PermissionStatus, error)

	// Token returns the current provider token, or ErrTokenUnavailable.
	Token(ctx context.Context) (string, error)

	// OnTokenRefresh registers a callback invoked whenever the provider
	// issues a replacement token.
	OnTokenRefresh(fn func(token string)) Subscription

	SubscribeToTopic(ctx context.Context, token string, topic string) error
	UnsubscribeFromTopic(ctx context.Context, token string, topic string) error
}

// DeviceStore manages the registered devices of a user. It allows the service
// to remember which provider tokens belong to whom, and with what permission.
type DeviceStore interface {
	// Register adds or updates a device for a user. Implementations must
	// handle deduplication (upsert by token).
	Register(ctx context.Context, user urn.URN, device Device) error

	// Unregister removes a single device token for a user.
	Unregister(ctx context.Context, user urn.URN, token string) error

	// Fetch retrieves all registered devices for a user.
	Fetch(ctx context.Context, user urn.URN) ([]Device, error)
}
