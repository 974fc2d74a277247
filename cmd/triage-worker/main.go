package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/dago-node-triage/internal/app"
	"github.com/aescanero/dago-node-triage/internal/config"
	"github.com/aescanero/dago-node-triage/internal/inbox"
	"github.com/aescanero/dago-node-triage/internal/review"
	"github.com/aescanero/dago-node-triage/internal/tracing"
	"github.com/aescanero/dago-node-triage/internal/worker"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

func main() {
	envFile := flag.String("env-file", "", "Path to env file")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
			os.Exit(1)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting triage worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("worker_id", cfg.WorkerID),
	)

	// Log configuration (without sensitive data)
	logger.Info("configuration loaded", zap.String("config", cfg.String()))

	// Initialize tracing
	if cfg.TraceEnabled {
		shutdownTracing, err := tracing.Init("triage-worker", Version, cfg.TraceFile)
		if err != nil {
			logger.Fatal("failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("failed to shut down tracing", zap.Error(err))
			}
		}()
		logger.Info("tracing enabled", zap.String("trace_file", cfg.TraceFile))
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	// Initialize session store and workflow
	store := app.NewSessionStore(cfg, redisClient, logger)
	wf, err := app.NewWorkflow(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal("failed to initialize workflow", zap.Error(err))
	}

	// Initialize worker
	w := worker.NewWorker(cfg, redisClient, wf, logger)

	// Start worker
	if err := w.Start(); err != nil {
		logger.Fatal("failed to start worker", zap.Error(err))
	}

	// Start Gmail poller
	var poller *worker.Poller
	if cfg.GmailEnabled() {
		// The service keeps its context for token refreshes, so it must outlive startup
		svc, err := inbox.NewGmailService(context.Background(), cfg.GmailCredentialsFile, cfg.GmailTokenFile)
		if err != nil {
			logger.Fatal("failed to initialize gmail", zap.Error(err))
		}
		poller = worker.NewPoller(inbox.NewGmailSource(svc, cfg.GmailQuery, 0), w, cfg.GmailPollInterval, logger)
		poller.Start()
	}

	// Start review server
	reviewServer := review.NewServer(wf, Version)
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server { return reviewServer }, nil))
	reviewHTTP := &http.Server{
		Addr:              cfg.ReviewAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting review server", zap.String("addr", cfg.ReviewAddr))
		if err := reviewHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("review server error", zap.Error(err))
		}
	}()

	// Start health server
	healthServer := worker.NewHealthServer(cfg.HealthPort, map[string]worker.CheckFunc{
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		"session_store": store.Ping,
	}, logger)
	if err := healthServer.Start(); err != nil {
		logger.Fatal("failed to start health server", zap.Error(err))
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("triage worker running, press Ctrl+C to stop")
	<-sigChan

	logger.Info("shutdown signal received, stopping worker")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop health server
	if err := healthServer.Stop(); err != nil {
		logger.Error("failed to stop health server", zap.Error(err))
	}

	// Stop review server
	if err := reviewHTTP.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop review server", zap.Error(err))
	}

	// Stop polling before the worker so nothing is enqueued after it stops
	if poller != nil {
		poller.Stop()
	}

	// Stop worker
	if err := w.Stop(); err != nil {
		logger.Error("failed to stop worker", zap.Error(err))
	}

	// Close Redis connection
	if err := redisClient.Close(); err != nil {
		logger.Error("failed to close redis connection", zap.Error(err))
	}

	select {
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing exit")
	default:
		logger.Info("worker stopped gracefully")
	}
}

// initLogger initializes the logger
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
