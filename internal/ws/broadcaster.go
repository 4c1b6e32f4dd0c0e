package ws

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog/log"

	"forum-service/internal/models"
	"forum-service/internal/observability"
	"forum-service/internal/rabbitmq"
)

// Broadcaster fans committed room events out to every handle of a topic.
type Broadcaster struct {
	hub   *Hub
	relay rabbitmq.Publisher
}

// NewBroadcaster constructs a Broadcaster. relay may be nil.
func NewBroadcaster(hub *Hub, relay rabbitmq.Publisher) *Broadcaster {
	return &Broadcaster{hub: hub, relay: relay}
}

type failedDelivery struct {
	handle Handle
	err    error
}

// Broadcast delivers event to a snapshot of the topic's room, the sender
// included, and returns the number of successful deliveries. Handles that
// fail are removed and closed after the pass; nothing is reported to the
// caller.
func (b *Broadcaster) Broadcast(ctx context.Context, topicID int, event models.RoomEvent) int {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Int("topic_id", topicID).Str("type", event.Type).Msg("marshal room event")
		return 0
	}

	handles := b.hub.Snapshot(topicID)
	var failed []failedDelivery
	delivered := 0
	for _, handle := range handles {
		if err := handle.Send(payload); err != nil {
			failed = append(failed, failedDelivery{handle: handle, err: err})
			continue
		}
		delivered++
	}

	for _, f := range failed {
		b.hub.Leave(topicID, f.handle)
		_ = f.handle.Close()
		log.Debug().Err(f.err).Str("conn_id", f.handle.ID()).Int("topic_id", topicID).Msg("dropping unreachable handle")

		info := ConnInfo{ConnID: f.handle.ID(), TopicID: topicID}
		if withInfo, ok := f.handle.(interface{ Info() ConnInfo }); ok {
			info = withInfo.Info()
		}
		publishWSEvent(ctx, b.relay, "ws_error", info, f.err.Error())
	}

	observability.AddBroadcastDeliveries("ok", delivered)
	observability.AddBroadcastDeliveries("failed", len(failed))

	b.relayEvent(ctx, topicID, event)
	return delivered
}

// relayEvent hands the committed event to other processes. Only the
// envelope leaves the process; no consumer re-fans it out here.
func (b *Broadcaster) relayEvent(ctx context.Context, topicID int, event models.RoomEvent) {
	if b.relay == nil {
		return
	}
	envelope := observability.EventEnvelope{
		EventType: "room_events",
		EventName: event.Type,
		Payload: map[string]interface{}{
			"topic_id": topicID,
			"event":    event,
		},
	}
	headers := observability.BuildHeaders("", observability.TraceIDFromContext(ctx))
	if err := b.relay.Publish(ctx, roomRoutingKey+strconv.Itoa(topicID), envelope, headers); err != nil {
		log.Warn().Err(err).Int("topic_id", topicID).Str("type", event.Type).Msg("room event relay failed")
	}
}
