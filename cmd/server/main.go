package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platformbuilds/escalate-core/internal/api"
	"github.com/platformbuilds/escalate-core/internal/channels"
	"github.com/platformbuilds/escalate-core/internal/config"
	"github.com/platformbuilds/escalate-core/internal/services"
	"github.com/platformbuilds/escalate-core/internal/storage/mysql"
	"github.com/platformbuilds/escalate-core/pkg/cache"
	"github.com/platformbuilds/escalate-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.New(cfg.LogLevel)
	logg.Info("Starting escalate-core", "environment", cfg.Environment)

	// Valkey cache, with an in-process fallback so a cache outage never
	// blocks alert delivery.
	valkey, err := cache.NewValkeySingle(cfg.Cache.Addr, cfg.Cache.DB, cfg.Cache.Password,
		time.Duration(cfg.Cache.TTL)*time.Second, logg)
	if err != nil {
		logg.Warn("Valkey unavailable, using in-process cache", "error", err)
		valkey = cache.NewNoopValkey(logg)
	}

	store, err := mysql.Connect(cfg.Database)
	if err != nil {
		logg.Fatal("Failed to connect to database", "error", err)
	}
	defer store.Close()
	logg.Info("Alert store connected", "host", cfg.Database.Host, "database", cfg.Database.Name)

	registry := channels.NewRegistry(cfg.Senders, store, logg)

	policy := services.NewSeverityPolicy()
	policy.ApplyOverrides(cfg.Severity.Overrides, logg)

	resolver := services.NewTeamAssignmentResolver(store, policy, valkey, cfg.Engine.AssignmentTTL(), logg)
	if path := cfg.Engine.TeamOverridesPath; path != "" {
		if err := resolver.LoadOverridesFile(path); err != nil {
			logg.Error("Failed to load team overrides", "path", path, "error", err)
		}
	}

	hours := services.NewBusinessHoursEvaluator()
	delivery := services.NewDeliveryEngine(registry, store, store, store, resolver,
		cfg.Engine.RetryMaxAttempts, logg)
	escalations := services.NewEscalationManager(policy, hours, resolver, delivery,
		store, store, cfg.Engine, logg)
	orchestrator := services.NewOrchestrator(store, store, resolver, delivery,
		escalations, cfg.Engine, logg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Config hot-reload re-applies severity overrides without a restart.
	watcher := config.NewWatcher("configs/config.yaml", logg)
	watcher.OnReload(func(next *config.Config) {
		policy.ApplyOverrides(next.Severity.Overrides, logg)
	})
	if err := watcher.Start(ctx); err != nil {
		logg.Warn("Config watcher disabled", "error", err)
	}
	defer watcher.Stop()

	orchestrator.Start(ctx)
	defer orchestrator.Stop()

	apiServer := api.NewServer(cfg, logg, valkey, store.DB, orchestrator, delivery, resolver, policy)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logg.Info("Shutdown signal received")
		cancel()
	}()

	if err := apiServer.Start(ctx); err != nil {
		logg.Fatal("Server failed", "error", err)
	}

	logg.Info("escalate-core shutdown complete")
}
