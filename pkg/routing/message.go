// Package routing contains the public interfaces and domain models for the
// dispatch router service.
package routing

// Channel identifies which delivery path produced an inbound message.
type Channel string

const (
	// ChannelForeground is a message that arrived while the app was actively running.
	ChannelForeground Channel = "foreground"
	// ChannelBackgroundTap is a notification the user tapped while the app was backgrounded.
	ChannelBackgroundTap Channel = "background_tap"
	// ChannelColdStart is a notification tap that launched a terminated app.
	ChannelColdStart Channel = "cold_start"
)

// Valid reports whether c is one of the three known delivery channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelForeground, ChannelBackgroundTap, ChannelColdStart:
		return true
	}
	return false
}

// ScreenKey is the payload key the provider uses to name the destination screen.
const ScreenKey = "screen"

// InboundMessage is the normalized form of a push notification event,
// regardless of which channel delivered it. Immutable once constructed.
type InboundMessage struct {
	// ID is the provider-assigned message identifier, unique per send.
	ID          string            `json:"id"`
	Title       string            `json:"title,omitempty"`
	Body        string            `json:"body,omitempty"`
	Payload     map[string]string `json:"payload,omitempty"`
	ReceivedVia Channel           `json:"received_via"`
}

// NavigationIntent is a normalized instruction describing which in-app screen
// to show and with what parameters.
type NavigationIntent struct {
	SourceMessageID string            `json:"source_message_id"`
	Target          string            `json:"target"`
	Params          map[string]string `json:"params,omitempty"`
}

// Intent derives the NavigationIntent for a message. The target is taken from
// the "screen" payload key; a message without one routes to defaultTarget and
// keeps its full payload as params. This never fails: malformed payload must
// not break message handling.
func (m InboundMessage) Intent(defaultTarget string) NavigationIntent {
	target := defaultTarget
	params := make(map[string]string, len(m.Payload))
	for k, v := range m.Payload {
		if k == ScreenKey {
			target = v
			continue
		}
		params[k] = v
	}
	return NavigationIntent{
		SourceMessageID: m.ID,
		Target:          target,
		Params:          params,
	}
}
