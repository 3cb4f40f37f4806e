// Package fcm bridges the routing.TokenProvider contract to Firebase Cloud
// Messaging: token validation, token refresh fan-out and topic management.
package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"firebase.google.com/go/v4/messaging"

	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
// Note: *messaging.Client automatically satisfies this interface.
type MessagingClient interface {
	SendDryRun(ctx context.Context, message *messaging.Message) (string, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}

// Provider implements routing.TokenProvider on top of FCM. The device shell
// reports its token and permission answer over the API; the provider keeps
// the current state, validates tokens against FCM, and fans token refreshes
// out to registered callbacks.
type Provider struct {
	client MessagingClient
	logger *slog.Logger

	mu         sync.Mutex
	token      string
	permission routing.PermissionStatus
	nextID     int
	refresh    map[int]func(string)
}

func NewProvider(client MessagingClient, logger *slog.Logger) *Provider {
	return &Provider{
		client:     client,
		logger:     logger.With("component", "FCMProvider"),
		permission: routing.PermissionUndetermined,
		refresh:    make(map[int]func(string)),
	}
}

// SetToken validates the token with a dry-run send and records it as current,
// firing every refresh callback if the token changed. A token FCM reports as
// dead or garbage returns ErrTokenUnavailable; a transport failure during the
// probe accepts the token unverified, because a flaky network must not lock a
// device out of notifications.
func (p *Provider) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return routing.ErrTokenUnavailable
	}

	probe := &messaging.Message{
		Token: token,
		Data:  map[string]string{"probe": "1"},
	}
	if _, err := p.client.SendDryRun(ctx, probe); err != nil {
		if messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsInvalidArgument(err) {
			p.logger.Info("FCM rejected token", "err", err)
			return fmt.Errorf("fcm rejected token: %w", routing.ErrTokenUnavailable)
		}
		p.logger.Warn("FCM dry-run probe failed; accepting token unverified", "err", err)
	}

	p.mu.Lock()
	changed := p.token != token
	p.token = token
	fns := make([]func(string), 0, len(p.refresh))
	for _, fn := range p.refresh {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	if changed {
		for _, fn := range fns {
			fn(token)
		}
	}
	return nil
}

// Token returns the current provider token, or ErrTokenUnavailable when none
// has been reported yet.
func (p *Provider) Token(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == "" {
		return "", routing.ErrTokenUnavailable
	}
	return p.token, nil
}

func (p *Provider) OnTokenRefresh(fn func(token string)) routing.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.refresh[id] = fn
	return &refreshSub{provider: p, id: id}
}

// RecordPermission stores the device shell's answer to the OS prompt.
func (p *Provider) RecordPermission(status routing.PermissionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.permission = status
}

// RequestPermission resolves the last permission answer the device reported.
// A denied status is a normal outcome, not an error: callers degrade to
// data-only silent delivery.
func (p *Provider) RequestPermission(_ context.Context) (routing.PermissionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permission, nil
}

func (p *Provider) SubscribeToTopic(ctx context.Context, token string, topic string) error {
	resp, err := p.client.SubscribeToTopic(ctx, []string{token}, topic)
	if err != nil {
		return fmt.Errorf("fcm topic subscribe failed: %w", err)
	}
	if err := topicError(resp); err != nil {
		return fmt.Errorf("fcm topic subscribe rejected for topic %s: %w", topic, err)
	}
	p.logger.Info("Subscribed to topic", "topic", topic)
	return nil
}

func (p *Provider) UnsubscribeFromTopic(ctx context.Context, token string, topic string) error {
	resp, err := p.client.UnsubscribeFromTopic(ctx, []string{token}, topic)
	if err != nil {
		return fmt.Errorf("fcm topic unsubscribe failed: %w", err)
	}
	if err := topicError(resp); err != nil {
		return fmt.Errorf("fcm topic unsubscribe rejected for topic %s: %w", topic, err)
	}
	p.logger.Info("Unsubscribed from topic", "topic", topic)
	return nil
}

// topicError maps a per-token failure in a topic management response to the
// token error taxonomy. We only ever pass one token, so one failure means the
// whole call failed.
func topicError(resp *messaging.TopicManagementResponse) error {
	if resp.FailureCount == 0 {
		return nil
	}
	reason := "unknown"
	if len(resp.Errors) > 0 {
		reason = resp.Errors[0].Reason
	}
	return fmt.Errorf("reason %s: %w", reason, routing.ErrTokenUnavailable)
}

type refreshSub struct {
	once     sync.Once
	provider *Provider
	id       int
}

func (s *refreshSub) Unsubscribe() {
	s.once.Do(func() {
		s.provider.mu.Lock()
		defer s.provider.mu.Unlock()
		delete(s.provider.refresh, s.id)
	})
}

var _ routing.TokenProvider = (*Provider)(nil)
