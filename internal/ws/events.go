package ws

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"forum-service/internal/observability"
	"forum-service/internal/rabbitmq"
)

const (
	wsKind         = "topic"
	wsRoutingKey   = "ws_events.topics"
	roomRoutingKey = "room_events.topic."
)

// publishWSEvent counts a lifecycle event and relays it when a publisher is
// configured.
func publishWSEvent(ctx context.Context, publisher rabbitmq.Publisher, event string, info ConnInfo, reason string) {
	observability.IncWSEvent(wsKind, event)
	if publisher == nil {
		return
	}

	var duration int64
	if !info.ConnectedAt.IsZero() && event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	envelope := observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        wsKind,
				"resource_id": info.TopicID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}
	if err := publisher.Publish(ctx, wsRoutingKey, envelope, observability.BuildHeaders(info.RequestID, info.TraceID)); err != nil {
		log.Warn().Err(err).Str("conn_id", info.ConnID).Str("event", event).Msg("ws event publish failed")
	}
}
