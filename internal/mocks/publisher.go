package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"forum-service/internal/rabbitmq"
)

var (
	_ rabbitmq.Publisher = (*PublisherMock)(nil)
	_ rabbitmq.Publisher = (*RecordingPublisher)(nil)
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Published is one call captured by RecordingPublisher.
type Published struct {
	RoutingKey string
	Event      any
	Headers    map[string]string
}

// RecordingPublisher keeps every publish in memory. Safe for concurrent use.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []Published
}

func (p *RecordingPublisher) Publish(_ context.Context, routingKey string, event any, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Published{RoutingKey: routingKey, Event: event, Headers: headers})
	return nil
}

func (p *RecordingPublisher) Close() error { return nil }

// Events returns a copy of the recorded publishes.
func (p *RecordingPublisher) Events() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.events...)
}

// RoutingKeys returns the routing key of every recorded publish, in order.
func (p *RecordingPublisher) RoutingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.RoutingKey)
	}
	return keys
}
