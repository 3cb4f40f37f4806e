package routing

import (
	"context"
	"sync"
)

// ChannelSource is an in-process MessageSource. The layer that receives raw
// provider events (an OS bridge, a transport consumer, a test) pushes them in
// with the Emit methods; the router registers callbacks through the
// MessageSource interface and tears them down via the returned handles.
type ChannelSource struct {
	mu         sync.Mutex
	nextID     int
	foreground map[int]func(InboundMessage)
	tapOpened  map[int]func(InboundMessage)
	initial    *InboundMessage
}

func NewChannelSource() *ChannelSource {
	return &ChannelSource{
		foreground: make(map[int]func(InboundMessage)),
		tapOpened:  make(map[int]func(InboundMessage)),
	}
}

func (s *ChannelSource) OnForegroundMessage(fn func(InboundMessage)) Subscription {
	return s.register(s.foreground, fn)
}

func (s *ChannelSource) OnTapOpenedFromBackground(fn func(InboundMessage)) Subscription {
	return s.register(s.tapOpened, fn)
}

// GetInitialLaunchMessage returns the message that launched the process, or
// nil for a plain start.
func (s *ChannelSource) GetInitialLaunchMessage(_ context.Context) (*InboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initial, nil
}

// SetInitialLaunchMessage records the cold-start message. Call before the
// router binds; a later call has no effect on a router that already started.
func (s *ChannelSource) SetInitialLaunchMessage(msg *InboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initial = msg
}

// EmitForeground delivers a live message to every registered foreground callback.
func (s *ChannelSource) EmitForeground(msg InboundMessage) {
	for _, fn := range s.snapshot(s.foreground) {
		fn(msg)
	}
}

// EmitTapOpened delivers a notification-tap event to every registered callback.
func (s *ChannelSource) EmitTapOpened(msg InboundMessage) {
	for _, fn := range s.snapshot(s.tapOpened) {
		fn(msg)
	}
}

func (s *ChannelSource) register(reg map[int]func(InboundMessage), fn func(InboundMessage)) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	reg[id] = fn
	return &sourceSub{remove: func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(reg, id)
	}}
}

// snapshot copies the callback set so emission runs outside the lock.
func (s *ChannelSource) snapshot(reg map[int]func(InboundMessage)) []func(InboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fns := make([]func(InboundMessage), 0, len(reg))
	for _, fn := range reg {
		fns = append(fns, fn)
	}
	return fns
}

type sourceSub struct {
	once   sync.Once
	remove func()
}

func (s *sourceSub) Unsubscribe() {
	s.once.Do(s.remove)
}
