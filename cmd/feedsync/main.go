package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"feedsync/internal/cache"
	"feedsync/internal/config"
	"feedsync/internal/constants"
	"feedsync/internal/service"
	"feedsync/internal/tracing"
	"feedsync/pkg/circuitbreaker"
	"feedsync/pkg/feedback"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("feedsync %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting feedsync")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    "feedsync",
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	credential := os.Getenv("FEEDSYNC_CREDENTIAL")

	httpClient := &http.Client{Timeout: time.Duration(cfg.API.TimeoutSec) * time.Second}
	client := feedback.NewClientWithLogger(cfg.API.BaseURL, credential, httpClient, logger)

	scope := &service.ScopeTracker{}
	if credential != "" {
		tenantScope, err := service.TenantScopeFromCredential(credential)
		if err != nil {
			return fmt.Errorf("failed to parse credential: %w", err)
		}
		scope.Set(tenantScope)
	}

	store := cache.NewStore()
	grace := service.NewGraceTable(time.Duration(cfg.Sync.GraceWindowSec) * time.Second)
	reconciler := cache.NewReconciler(store, cache.NewDetector(grace), logger)

	dispatcher := service.NewDispatcher(&logAlertSink{logger: logger}, &noopGateway{}, &neverVisible{}, logger)
	dispatcher.EnsurePermission(ctx)

	channel := service.NewChannelManager(cfg.Channel, logger)
	engine := service.NewSyncEngine(channel.Events(), store, reconciler, scope, dispatcher, logger)

	breaker := circuitbreaker.NewWithLogger("feedback-api",
		constants.DefaultBreakerMaxFailures, constants.DefaultBreakerResetSec*time.Second, logger)
	refresher := service.NewRefresher(client, engine, breaker, scope, cfg.Sync, logger)
	engine.OnReconnect(refresher.Trigger)

	coordinator := service.NewMutationCoordinator(store, client, grace,
		time.Duration(cfg.Sync.MutationTimeoutSec)*time.Second, logger)

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync engine: %w", err)
	}
	defer engine.Stop()

	if err := refresher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start refresher: %w", err)
	}
	defer refresher.Stop()

	channel.Connect(ctx, credential)
	defer channel.Disconnect()
	defer coordinator.Wait()

	if credential != "" {
		if err := channel.Join(scope.Get()); err != nil {
			logger.WithError(err).Warn("Initial room join failed")
		}
	}
	refresher.Trigger("mount")

	// Surface settled mutations; failures have already been rolled back.
	go func() {
		for result := range coordinator.Results() {
			if result.Err != nil {
				logger.WithError(result.Err).WithField("message_id", service.SanitizeMessageID(result.ID)).Warn("Mutation failed and was rolled back")
				continue
			}
			logger.WithField("message_id", service.SanitizeMessageID(result.ID)).Info("Mutation committed")
		}
	}()

	server := NewServer(channel, scope, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Status server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Status server shutdown error: %v", err)
	}
	wg.Wait()

	return nil
}
