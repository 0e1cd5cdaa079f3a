package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/adrianov/diskadmit/internal/adapter/engine"
	"github.com/adrianov/diskadmit/internal/adapter/filesystem"
	"github.com/adrianov/diskadmit/internal/adapter/prompt"
	"github.com/adrianov/diskadmit/internal/adapter/sqlite"
	"github.com/adrianov/diskadmit/internal/config"
	"github.com/adrianov/diskadmit/internal/domain/event"
	"github.com/adrianov/diskadmit/internal/logger"
	"github.com/adrianov/diskadmit/internal/registry"
	"github.com/adrianov/diskadmit/internal/service/admission"
	"github.com/adrianov/diskadmit/internal/service/monitor"
	"github.com/adrianov/diskadmit/internal/service/server"
)

const version = "0.1.0"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting diskadmit",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Open database
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "diskadmit.db")
	}
	store, err := sqlite.Open(dbPath)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err), zap.String("path", dbPath))
	}
	defer store.Close()

	// Domain events
	dispatcher := event.NewInMemoryDispatcher(false)
	dispatcher.Subscribe(event.NewLoggingHandler(log))
	metrics := event.NewMetricsHandler()
	dispatcher.Subscribe(metrics)

	// Transfer collection
	reg := registry.New(store, log)
	if err := reg.Load(); err != nil {
		log.Fatal("failed to load transfers", zap.Error(err))
	}

	// Adapters
	prober := filesystem.NewProber()
	eng := engine.NewLocal(reg, log)
	prompts := prompt.NewCenter(log)

	// Admission coordinator
	admissionCfg := &admission.Config{
		ThrottleWindow: cfg.Admission.GetThrottleWindow(),
		Groups:         cfg.GroupNames(),
	}
	coordinator := admission.New(admissionCfg, reg, eng, prober, prompts, dispatcher, log)
	defer coordinator.Close()

	// Monitor service
	monitorCfg := &monitor.Config{
		RefreshInterval:  cfg.Admission.GetRefreshInterval(),
		WatchdogInterval: cfg.Admission.GetWatchdogInterval(),
		MinFreeBytes:     cfg.Admission.GetMinFreeBytes(),
	}
	monitorService := monitor.New(monitorCfg, reg, coordinator, eng, prober, dispatcher, log)

	// HTTP server
	serverCfg := &server.Config{
		BindAddr:     cfg.HTTP.BindAddr,
		ReadTimeout:  cfg.HTTP.GetReadTimeout(),
		WriteTimeout: cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:  cfg.HTTP.GetIdleTimeout(),
	}
	httpServer := server.New(serverCfg, reg, coordinator, eng, prompts, metrics, log)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start HTTP server
	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Start monitor service
	go func() {
		if err := monitorService.Start(ctx); err != nil && err != context.Canceled {
			log.Error("monitor service stopped with error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Info("diskadmit started",
		zap.String("http_addr", cfg.HTTP.BindAddr),
		zap.String("database", dbPath),
	)
	<-sigChan

	log.Info("shutdown signal received, stopping services...")

	cancel()
	monitorService.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}

	log.Info("diskadmit stopped")
}
