package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"sms-gateway-dashboard/internal/config"
	"sms-gateway-dashboard/internal/db"
	"sms-gateway-dashboard/internal/dedupe"
	"sms-gateway-dashboard/internal/extract"
	"sms-gateway-dashboard/internal/gateway"
	"sms-gateway-dashboard/internal/handlers"
	"sms-gateway-dashboard/internal/live"
	"sms-gateway-dashboard/internal/services"
	"sms-gateway-dashboard/pkg/logger"
	"sms-gateway-dashboard/router"

	"go.uber.org/zap"
)

// Server is the HTTP server plus the resources and background loops it owns
type Server struct {
	*http.Server

	database *db.Database
	hub      *live.Hub
	sync     *services.SyncService
	send     *services.SendService
	seen     *dedupe.Cache
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SetupServer initializes and returns a configured HTTP server
func SetupServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	if cfg.Server.Port <= 0 {
		return nil, errors.New("invalid server port")
	}

	// Initialize database
	database, err := db.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize repositories
	userRepo := db.NewUserRepository(database.GetDB())
	participantRepo := db.NewParticipantRepository(database.GetDB())
	receivedRepo := db.NewReceivedRepository(database.GetDB())
	sentRepo := db.NewSentRepository(database.GetDB())

	userService, err := services.NewUserServiceWithEncryption(userRepo, cfg)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	// Seed the first staff account if enabled
	if cfg.Seed.Enable {
		created, err := userService.EnsureUser(cfg.Seed.AdminUsername, cfg.Seed.AdminPassword)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to seed database: %w", err)
		}
		if !created {
			logger.Info("Seed account already exists", zap.String("username", cfg.Seed.AdminUsername))
		}
	}

	// Device client and live channel
	extractor := extract.New(cfg.Sync.Fields)
	if cfg.GatewayURL() == "" {
		logger.Warn("Gateway device address is not configured; sync and send will fail")
	}
	gw := gateway.NewClient(gateway.Options{
		BaseURL:       cfg.GatewayURL(),
		Username:      cfg.Gateway.Username,
		Password:      cfg.Gateway.Password,
		ProbeTimeout:  cfg.Gateway.ProbeTimeout.Std(),
		SendTimeout:   cfg.Gateway.SendTimeout.Std(),
		HealthTimeout: cfg.Gateway.HealthTimeout.Std(),
	}, extractor)
	hub := live.NewHub(live.Options{AllowedOrigins: cfg.Live.AllowedOrigins})
	registry := live.NewRegistry(cfg.Live.CallbackTimeout.Std())
	seen := dedupe.New(cfg.Webhook.DedupeTTL.Std())

	// Initialize services
	resolver := services.NewResolver(participantRepo)
	participantService := services.NewParticipantService(participantRepo, sentRepo)
	conversationService := services.NewConversationService(participantRepo, receivedRepo, sentRepo, hub)
	syncService := services.NewSyncService(gw, extractor, receivedRepo, resolver, hub, services.SyncOptions{
		Endpoints:       cfg.Sync.Endpoints,
		GenericEndpoint: cfg.Sync.GenericEndpoint,
		QueryVariants:   cfg.Sync.QueryVariants,
	})
	sendService := services.NewSendService(gw, participantRepo, sentRepo, resolver, hub, services.Pacing{
		Min: cfg.Pacing.MinDelay.Std(),
		Max: cfg.Pacing.MaxDelay.Std(),
	})
	webhookService := services.NewWebhookService(cfg.Webhook.Secret, extractor, receivedRepo, resolver, hub, seen)
	deviceService := services.NewDeviceService(gw)

	// Setup routes
	r := router.New(cfg, router.Handlers{
		Auth:         handlers.NewAuthHandler(cfg, userService),
		Participants: handlers.NewParticipantHandler(participantService),
		Messages:     handlers.NewMessageHandler(conversationService),
		Sync:         handlers.NewSyncHandler(syncService, deviceService),
		Send:         handlers.NewSendHandler(sendService),
		Webhook:      handlers.NewWebhookHandler(webhookService),
		Live:         handlers.NewLiveHandler(hub, registry, sendService, cfg.Pacing.MaxDelay.Std()),
	}, database.Ping, version)

	// Create server with security timeouts. No write timeout: websocket
	// connections and slow syncs outlive any fixed deadline.
	srv := &Server{
		Server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           r,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		database: database,
		hub:      hub,
		sync:     syncService,
		send:     sendService,
		seen:     seen,
		interval: cfg.Sync.Interval.Std(),
	}

	return srv, nil
}

// startBackground runs the periodic sync and the dedupe janitor
func (s *Server) startBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.seen.Run(ctx, 0)
	}()
	go func() {
		defer s.wg.Done()
		s.sync.Run(ctx, s.interval)
	}()
}

// Release stops the background loops, waits for bulk sends in flight,
// disconnects live clients and closes the database
func (s *Server) Release() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	if s.send != nil {
		s.send.Wait()
	}
	s.hub.Close()
	return s.database.Close()
}

func (s *Server) shutdown() error {
	logger.Info("Shutting down server...")

	// Create a timeout context for shutdown
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	shutdownErr := s.Shutdown(ctxShutdown)
	if err := s.Release(); err != nil {
		logger.Warn("Failed to release resources", zap.Error(err))
	}
	if shutdownErr != nil {
		return fmt.Errorf("server shutdown failed: %w", shutdownErr)
	}
	return nil
}

func (s *Server) listen() {
	s.startBackground()
	go func() {
		logger.Info("Starting server", zap.String("addr", s.Addr))
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()
}

// StartServer starts the HTTP server and handles graceful shutdown
func StartServer(srv *Server) error {
	srv.listen()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return srv.shutdown()
}

// StartServerWithContext starts the HTTP server with a context for shutdown control
func StartServerWithContext(ctx context.Context, srv *Server) error {
	srv.listen()

	// Wait for context cancellation
	<-ctx.Done()

	return srv.shutdown()
}
