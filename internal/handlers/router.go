package handlers

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"forum-service/internal/middleware"
	"forum-service/internal/observability"
	"forum-service/internal/repositories"
	"forum-service/internal/telemetry"
	"forum-service/internal/ws"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	ServiceName  string
	Auth         *AuthHandler
	Topics       *TopicHandler
	TopicWS      *ws.TopicWebSocketHandler
	Sessions     repositories.SessionRepository
	LoginLimiter *middleware.RateLimiter
	Audit        *telemetry.AuditEmitter
	Hub          *ws.Hub
	LoginPath    string
	SignupPath   string
	DebugRoutes  bool
}

// NewRouter builds the gin engine with the shared middleware chain and every
// route registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	if deps.ServiceName != "" {
		router.Use(otelgin.Middleware(deps.ServiceName))
	}
	router.Use(
		middleware.RequestID(),
		middleware.Logger(),
		gin.Recovery(),
		observability.HTTPMetricsMiddleware(),
	)
	RegisterRoutes(router, deps)
	return router
}

// RegisterRoutes wires the public, authenticated and websocket routes.
func RegisterRoutes(router *gin.Engine, deps RouterDeps) {
	loginPath := deps.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	signupPath := deps.SignupPath
	if signupPath == "" {
		signupPath = "/signup"
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "forum-service", "login": loginPath})
	})
	router.GET("/robots.txt", func(c *gin.Context) {
		c.String(http.StatusOK, "User-agent: *\nDisallow: /\n")
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	loginHandlers := []gin.HandlerFunc{deps.Auth.Login}
	if deps.LoginLimiter != nil {
		loginHandlers = append([]gin.HandlerFunc{deps.LoginLimiter.Middleware()}, loginHandlers...)
	}
	router.POST(loginPath, loginHandlers...)
	router.POST(signupPath, deps.Auth.Signup)
	router.POST("/logout", deps.Auth.Logout)
	router.GET("/logout", deps.Auth.Logout)

	auth := middleware.SessionAuth(deps.Sessions)

	api := router.Group("/api", auth, gzip.Gzip(gzip.DefaultCompression))
	api.GET("/topics", deps.Topics.ListTopics)
	api.POST("/topics", deps.Topics.CreateTopic)
	api.GET("/topics/:topic_id", deps.Topics.GetTopic)

	router.GET("/ws/topic/:topic_id", auth, deps.TopicWS.Handle)

	RegisterDebugRoutes(router, deps.Audit, deps.Hub, deps.DebugRoutes)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
