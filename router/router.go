// Package router assembles the dashboard's HTTP surface: middleware chain,
// public and protected routes, and the JSON fallbacks for unknown paths.
package router

import (
	"net/http"
	"time"

	"sms-gateway-dashboard/internal/config"
	"sms-gateway-dashboard/internal/handlers"
	"sms-gateway-dashboard/pkg/logger"
	"sms-gateway-dashboard/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers groups every handler the router mounts
type Handlers struct {
	Auth         *handlers.AuthHandler
	Participants *handlers.ParticipantHandler
	Messages     *handlers.MessageHandler
	Sync         *handlers.SyncHandler
	Send         *handlers.SendHandler
	Webhook      *handlers.WebhookHandler
	Live         *handlers.LiveHandler
}

// HealthFunc reports whether the server's dependencies are usable
type HealthFunc func() error

// Router is the dashboard's gin engine
type Router struct {
	engine  *gin.Engine
	health  HealthFunc
	version string
}

// New builds the engine. health may be nil.
func New(cfg *config.Config, h Handlers, health HealthFunc, version string) *Router {
	r := &Router{
		engine:  gin.New(),
		health:  health,
		version: version,
	}

	e := r.engine
	e.HandleMethodNotAllowed = true
	e.Use(gin.Recovery())
	e.Use(middleware.RequestIDMiddleware())
	e.Use(middleware.AuditLogMiddleware())
	e.Use(middleware.MetricsMiddleware())
	e.Use(middleware.SecurityHeadersMiddleware())
	e.Use(middleware.CORSMiddleware(cfg.Live.AllowedOrigins))
	if cfg.Server.RedirectHTTPS {
		e.Use(middleware.HTTPSRedirectMiddleware())
	}
	if cfg.Server.MaxBodyBytes > 0 {
		e.Use(middleware.RequestSizeLimitMiddleware(cfg.Server.MaxBodyBytes))
	}

	e.NoRoute(r.handleNotFound)
	e.NoMethod(r.handleMethodNotAllowed)

	// Public
	e.GET("/health", r.handleHealth)
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.POST("/login", h.Auth.Login)
	e.POST("/pixel/incoming", h.Webhook.Incoming)
	e.GET("/ws", middleware.WebSocketAuthMiddleware(cfg), h.Live.Serve)

	protected := e.Group("/")
	protected.Use(middleware.AuthMiddleware(cfg))
	{
		protected.POST("/logout", h.Auth.Logout)
		protected.GET("/verify-token", h.Auth.VerifyToken)
		protected.POST("/auth/change-password", h.Auth.ChangePassword)
		protected.POST("/auth/2fa/setup", h.Auth.SetupTOTP)
		protected.POST("/auth/2fa/enable", h.Auth.EnableTOTP)
		protected.POST("/auth/2fa/disable", h.Auth.DisableTOTP)

		protected.GET("/participants", h.Participants.List)
		protected.POST("/participants", h.Participants.Create)
		protected.GET("/participant-history/:id", h.Participants.History)
		protected.POST("/api/participants/import-excel", h.Participants.Import)
		protected.GET("/api/participants/export-excel", h.Participants.Export)

		protected.GET("/unread-sms", h.Messages.Unread)
		protected.POST("/mark-sms-read/:id", h.Messages.MarkRead)
		protected.POST("/mark-conversation-read", h.Messages.MarkConversationRead)
		protected.GET("/sent-messages-archive", h.Messages.Archive)
		protected.GET("/conversations/:key", h.Messages.Conversation)
		protected.POST("/add-received-sms", h.Messages.AddReceived)

		protected.GET("/pixel-status", h.Sync.Health)
		protected.GET("/pixel/device-status", h.Sync.DeviceStatus)
		protected.POST("/pixel/sync-sms", h.Sync.SyncAll)
		protected.POST("/pixel/sync-unread-only", h.Sync.SyncUnread)
		protected.GET("/pixel/sync-status", h.Sync.Status)

		protected.POST("/send-sms-quick", h.Send.Quick)
		protected.POST("/send-bulk", h.Send.Bulk)
		protected.GET("/send-status", h.Send.Status)
	}

	return r
}

// Engine returns the underlying gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

func (r *Router) handleHealth(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if r.health != nil {
		if err := r.health(); err != nil {
			logger.Error("Health check failed", zap.Error(err))
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":  status,
		"time":    time.Now().UTC(),
		"version": r.version,
		"service": "sms-gateway-dashboard",
	})
}

func (r *Router) handleNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}

func (r *Router) handleMethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}
