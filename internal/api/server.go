package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platformbuilds/escalate-core/internal/api/handlers"
	"github.com/platformbuilds/escalate-core/internal/api/middleware"
	"github.com/platformbuilds/escalate-core/internal/config"
	"github.com/platformbuilds/escalate-core/internal/services"
	"github.com/platformbuilds/escalate-core/pkg/cache"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

type Server struct {
	config       *config.Config
	logger       logger.Logger
	cache        cache.Valkey
	db           handlers.Pinger
	orchestrator *services.Orchestrator
	delivery     *services.DeliveryEngine
	resolver     *services.TeamAssignmentResolver
	policy       *services.SeverityPolicy
	router       *gin.Engine
	httpServer   *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	valkey cache.Valkey,
	db handlers.Pinger,
	orchestrator *services.Orchestrator,
	delivery *services.DeliveryEngine,
	resolver *services.TeamAssignmentResolver,
	policy *services.SeverityPolicy,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:       cfg,
		logger:       log,
		cache:        valkey,
		db:           db,
		orchestrator: orchestrator,
		delivery:     delivery,
		resolver:     resolver,
		policy:       policy,
		router:       gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()
	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.MetricsMiddleware())

	// Prometheus metrics endpoint
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.db, s.cache, s.logger)
	escalationHandler := handlers.NewEscalationHandler(s.orchestrator, s.delivery, s.resolver, s.logger)
	severityHandler := handlers.NewSeverityHandler(s.policy, s.logger)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.HealthCheck)
		v1.GET("/ready", healthHandler.ReadinessCheck)

		v1.POST("/alerts/process", escalationHandler.ProcessAlert)
		v1.POST("/alerts/deliver", escalationHandler.DeliverAlert)
		v1.POST("/alerts/:id/resolve", escalationHandler.ResolveAlert)
		v1.POST("/alerts/:id/acknowledge", escalationHandler.AcknowledgeAlert)

		v1.GET("/escalations", escalationHandler.ListEscalations)
		v1.GET("/escalations/:alertId", escalationHandler.GetEscalationStatus)
		v1.DELETE("/escalations/:alertId", escalationHandler.CancelEscalation)

		v1.POST("/notifications/:deliveryId/retry", escalationHandler.RetryNotification)
		v1.POST("/teams/:teamId/invalidate", escalationHandler.InvalidateTeam)

		v1.GET("/severities", severityHandler.ListSeverities)
		v1.PATCH("/severities/:severity", severityHandler.PatchSeverity)
	}
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Escalation API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down API server gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler exposes the Gin engine for tests and embedders.
func (s *Server) Handler() http.Handler {
	return s.router
}
