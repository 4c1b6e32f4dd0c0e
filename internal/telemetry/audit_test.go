package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	routingKey string
	event      any
	headers    map[string]string
	err        error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, event any, headers map[string]string) error {
	p.routingKey = routingKey
	p.event = event
	p.headers = headers
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestEmitActionBuildsEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	e := NewAuditEmitter(pub, "audit.forum", "forum-service", "test")
	e.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	uid := 42
	e.EmitAction(context.Background(), "INFO", "user.login", "login ok", "rid-1", &uid)

	assert.Equal(t, "audit.forum", pub.routingKey)
	assert.Equal(t, map[string]string{"x-request-id": "rid-1"}, pub.headers)

	env, ok := pub.event.(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, 1, env.SchemaVersion)
	assert.Equal(t, "audit_log", env.EventType)
	assert.Equal(t, "2024-05-06T07:08:09Z", env.OccurredAt)
	assert.Equal(t, "forum-service", env.Service)
	assert.Equal(t, "test", env.Environment)
	require.NotNil(t, env.UserID)
	assert.Equal(t, 42, *env.UserID)
	assert.Equal(t, AuditPayload{Level: "INFO", Action: "user.login", Text: "login ok"}, env.Payload)
}

func TestEmitToleratesFailuresAndNil(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("down")}
	e := NewAuditEmitter(pub, "audit.forum", "forum-service", "test")
	e.Emit(context.Background(), "INFO", "text", "", nil)
	assert.Empty(t, pub.headers)

	var nilEmitter *AuditEmitter
	nilEmitter.Emit(context.Background(), "INFO", "text", "", nil)

	NewAuditEmitter(nil, "k", "s", "e").Emit(context.Background(), "INFO", "text", "", nil)
}
