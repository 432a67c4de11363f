package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/auditkit/expense-sentinel/internal/audit"
	"github.com/auditkit/expense-sentinel/internal/cache"
	"github.com/auditkit/expense-sentinel/internal/config"
	"github.com/auditkit/expense-sentinel/internal/logger"
	"github.com/auditkit/expense-sentinel/internal/store"
	"github.com/auditkit/expense-sentinel/internal/web"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		dataPath    = flag.String("data", "", "Expense data file (overrides store.path)")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("Expense-Sentinel %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Perform health check and exit
	if *healthCheck {
		performHealthCheck()
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.Store.Path = *dataPath
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Expense-Sentinel",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	ctx := context.Background()

	// Create record store
	var backend store.Backend
	var fileBackend *store.FileBackend
	if cfg.Store.DatabaseURL != "" {
		pg, err := store.NewPostgresBackend(cfg.Store, log.WithComponent("store").Logger)
		if err != nil {
			log.Fatal("Failed to create Postgres backend", zap.Error(err))
		}
		defer pg.Close()
		backend = pg
	} else {
		fileBackend = store.NewFileBackend(cfg.Store.Path, log.WithComponent("store").Logger)
		backend = fileBackend
	}

	st, err := store.New(ctx, backend, log.WithComponent("store").Logger)
	if err != nil {
		log.Fatal("Failed to load expense records", zap.Error(err))
	}

	// Watch the data file for external edits
	if fileBackend != nil && cfg.Store.WatchFile {
		watcher, err := store.NewWatcher(st, fileBackend.Path(), log.WithComponent("watcher").Logger)
		if err != nil {
			log.Warn("Failed to start data file watcher", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	// Create audit engine
	engine, err := audit.New(cfg.Audit, log.WithComponent("audit"))
	if err != nil {
		log.Fatal("Failed to create audit engine", zap.Error(err))
	}

	// Optional result cache
	var resultCache *cache.ResultCache
	if cfg.Cache.Enabled {
		resultCache, err = cache.NewResultCache(cfg.Cache, log.WithComponent("cache").Logger)
		if err != nil {
			log.Warn("Result cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer resultCache.Close()
		}
	}

	// Create web server
	server := web.New(cfg, log, engine, st, resultCache)

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
