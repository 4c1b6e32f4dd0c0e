package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"forum-service/internal/config"
	"forum-service/internal/db"
	"forum-service/internal/handlers"
	"forum-service/internal/middleware"
	"forum-service/internal/observability"
	"forum-service/internal/rabbitmq"
	"forum-service/internal/repositories"
	"forum-service/internal/telemetry"
	"forum-service/internal/workerpool"
	"forum-service/internal/ws"
)

const (
	serviceName     = "forum-service"
	version         = "1.0.0"
	auditRoutingKey = "audit_logs.forum"
)

func main() {
	cfg := config.MustLoad()
	observability.SetupLogger(cfg.LogLevel, cfg.LogPretty, serviceName)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	database, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect to db")
	}

	store := repositories.NewDB(database)
	userRepo := repositories.NewUserRepo(store)
	sessionRepo := repositories.NewSessionRepo(store)
	topicRepo := repositories.NewTopicRepo(store)
	messageRepo := repositories.NewMessageRepo(store)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	log.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, serviceName, cfg.Environment)

	pool := workerpool.New(cfg.StoreWorkers, cfg.StoreQueue)
	hub := ws.NewHub()
	broadcaster := ws.NewBroadcaster(hub, publisher)
	processor := ws.NewCommandProcessor(messageRepo, pool)

	topicWS := ws.NewTopicWebSocketHandler(hub, broadcaster, processor, topicRepo, publisher, ws.Options{
		MaxMessageLen:  cfg.MaxMessageLen,
		Heartbeat:      cfg.WS.Heartbeat,
		WriteWait:      cfg.WS.WriteWait,
		MaxFrameBytes:  cfg.WS.MaxFrameBytes,
		AllowedOrigins: cfg.WS.AllowedOrigins,
	})

	serviceLabel := ""
	if cfg.OTEL.Enabled {
		serviceLabel = cfg.OTEL.ServiceName
	}
	router := handlers.NewRouter(handlers.RouterDeps{
		ServiceName:  serviceLabel,
		Auth:         handlers.NewAuthHandler(userRepo, sessionRepo, audit, cfg.MaxUsernameLen),
		Topics:       handlers.NewTopicHandler(topicRepo, messageRepo, audit, cfg.MaxTopicTitle),
		TopicWS:      topicWS,
		Sessions:     sessionRepo,
		LoginLimiter: middleware.NewRateLimiter(cfg.LoginRPS, cfg.LoginBurst),
		Audit:        audit,
		Hub:          hub,
		LoginPath:    cfg.LoginPath,
		SignupPath:   cfg.SignupPath,
		DebugRoutes:  cfg.DebugRoutes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Environment).Msg("forum-service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	stop()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// hijacked websocket connections are not tracked by Shutdown
	closed := hub.CloseAll()
	log.Info().Int("connections", closed).Msg("websocket connections closed")
	if err := topicWS.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("websocket loops still running")
	}

	pool.Close()
	if err := publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("publisher close")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown")
	}
	if err := database.Close(); err != nil {
		log.Warn().Err(err).Msg("db close")
	}
	log.Info().Msg("bye")
}
