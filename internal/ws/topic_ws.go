package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"forum-service/internal/observability"
	"forum-service/internal/rabbitmq"
	"forum-service/internal/repositories"
)

// Options configures topic websocket connections.
type Options struct {
	MaxMessageLen  int
	Heartbeat      time.Duration
	WriteWait      time.Duration
	MaxFrameBytes  int64
	AllowedOrigins []string
}

// TopicWebSocketHandler upgrades topic room connections and runs their
// command loop.
type TopicWebSocketHandler struct {
	hub         *Hub
	broadcaster *Broadcaster
	processor   *CommandProcessor
	topicRepo   repositories.TopicRepository
	events      rabbitmq.Publisher
	upgrader    websocket.Upgrader
	opts        Options

	loops sync.WaitGroup
}

// NewTopicWebSocketHandler constructs a TopicWebSocketHandler. events may be nil.
func NewTopicWebSocketHandler(hub *Hub, broadcaster *Broadcaster, processor *CommandProcessor, topicRepo repositories.TopicRepository, events rabbitmq.Publisher, opts Options) *TopicWebSocketHandler {
	return &TopicWebSocketHandler{
		hub:         hub,
		broadcaster: broadcaster,
		processor:   processor,
		topicRepo:   topicRepo,
		events:      events,
		upgrader:    websocket.Upgrader{CheckOrigin: originChecker(opts.AllowedOrigins)},
		opts:        opts,
	}
}

func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
}

// Handle verifies identity and topic, upgrades, and serves the connection
// until it closes. Unauthenticated callers and unknown topics get the same
// 404.
func (h *TopicWebSocketHandler) Handle(c *gin.Context) {
	userID := c.GetInt("userID")
	if userID == 0 {
		notFound(c)
		return
	}
	topicID, err := strconv.Atoi(c.Param("topic_id"))
	if err != nil {
		notFound(c)
		return
	}

	ctx, span := otel.Tracer("forum-service/ws").Start(c.Request.Context(), "ws.handshake")
	span.SetAttributes(attribute.Int("topic_id", topicID), attribute.Int("user_id", userID))
	c.Request = c.Request.WithContext(ctx)

	if _, err := h.topicRepo.GetTopic(ctx, topicID); err != nil {
		span.End()
		if errors.Is(err, repositories.ErrTopicNotFound) {
			notFound(c)
			return
		}
		log.Error().Err(err).Int("topic_id", topicID).Msg("topic lookup failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.loops.Add(1)
	defer h.loops.Done()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	span.End()
	if err != nil {
		observability.IncWSEvent(wsKind, "ws_upgrade_failed")
		log.Debug().Err(err).Int("topic_id", topicID).Msg("websocket upgrade failed")
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		TopicID:     topicID,
		UserID:      userID,
		Username:    c.GetString("username"),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   c.GetString("requestID"),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	if info.RequestID == "" {
		info.RequestID = observability.RequestIDFromRequest(c.Request)
	}
	if !span.SpanContext().HasTraceID() {
		info.TraceID = ""
	}

	h.serve(ctx, NewClient(conn, info, ClientConfig{
		Heartbeat:     h.opts.Heartbeat,
		WriteWait:     h.opts.WriteWait,
		MaxFrameBytes: h.opts.MaxFrameBytes,
	}))
}

// Wait blocks until every connection loop has finished its cleanup, or ctx
// is done. Call it after the HTTP server stopped accepting and the hub closed
// its handles.
func (h *TopicWebSocketHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serve runs the connection loop. Frames are handled one at a time, so a
// command and its broadcast finish before the next frame is read.
func (h *TopicWebSocketHandler) serve(ctx context.Context, client *Client) {
	info := client.Info()
	logger := log.With().
		Str("conn_id", info.ConnID).
		Int("topic_id", info.TopicID).
		Int("user_id", info.UserID).
		Logger()

	client.Open()
	h.hub.Join(info.TopicID, client)
	observability.IncWSActive(wsKind)
	publishWSEvent(ctx, h.events, "ws_connect", info, "")
	logger.Info().Msg("websocket connected")

	var closeReason string
	defer func() {
		h.hub.Leave(info.TopicID, client)
		_ = client.Close()
		observability.DecWSActive(wsKind)
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.WriteWait)
		publishWSEvent(pubCtx, h.events, "ws_disconnect", info, closeReason)
		cancel()
		logger.Info().Str("reason", closeReason).Msg("websocket disconnected")
	}()

	for {
		mt, data, err := client.ReadFrame()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && client.State() == StateOpen {
				publishWSEvent(ctx, h.events, "ws_error", info, closeReason)
			}
			return
		}
		if mt != websocket.TextMessage {
			h.dropped(&logger, "binary_frame")
			continue
		}
		h.handleFrame(ctx, &logger, info, data)
	}
}

func (h *TopicWebSocketHandler) handleFrame(ctx context.Context, logger *zerolog.Logger, info ConnInfo, data []byte) {
	cmd, err := ParseCommand(data, h.opts.MaxMessageLen)
	if err != nil {
		reason := "invalid"
		var de *DropError
		if errors.As(err, &de) {
			reason = de.Reason
		}
		h.dropped(logger, reason)
		return
	}

	event, err := h.processor.Process(ctx, info.TopicID, info.UserID, cmd)
	switch {
	case errors.Is(err, ErrCommandIgnored):
		observability.IncCommand(cmd.Type, "ignored")
		logger.Debug().Err(err).Str("command", cmd.Type).Int("message_id", cmd.MessageID).Msg("command ignored")
		return
	case err != nil:
		observability.IncCommand(cmd.Type, "store_error")
		logger.Error().Err(err).Str("command", cmd.Type).Int("message_id", cmd.MessageID).Msg("command failed")
		return
	}

	observability.IncCommand(cmd.Type, "applied")
	h.broadcaster.Broadcast(ctx, info.TopicID, event)
}

func (h *TopicWebSocketHandler) dropped(logger *zerolog.Logger, reason string) {
	observability.IncFrameDropped(reason)
	logger.Debug().Str("reason", reason).Msg("frame dropped")
}
