package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/seanankenbruck/twin-query/internal/api"
	"github.com/seanankenbruck/twin-query/internal/audit"
	"github.com/seanankenbruck/twin-query/internal/auth"
	"github.com/seanankenbruck/twin-query/internal/config"
	"github.com/seanankenbruck/twin-query/internal/graph"
	"github.com/seanankenbruck/twin-query/internal/history"
	"github.com/seanankenbruck/twin-query/internal/llm"
	"github.com/seanankenbruck/twin-query/internal/observability"
	"github.com/seanankenbruck/twin-query/internal/processor"
	"github.com/seanankenbruck/twin-query/internal/record"
	"github.com/seanankenbruck/twin-query/internal/timeseries"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	shutdownTimeout = 15 * time.Second
	cleanupInterval = time.Hour
	memoryLimit     = 1 << 30
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := config.NewDefaultLoader()
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if err := cfg.ValidateWithContext(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	gin.SetMode(cfg.Server.GinMode)
	logger := observability.NewLogger("main").WithLevel(observability.ParseLevel(cfg.Server.LogLevel))
	metrics := observability.GetGlobalMetrics()
	healthChecker := observability.NewHealthChecker(version)

	completion, err := processor.CompletionClient(ctx, cfg.Completion)
	if err != nil {
		logger.Error(ctx, "Failed to initialize completion client", err, nil)
		os.Exit(1)
	}
	logger.Info(ctx, "Completion client ready", map[string]interface{}{
		"model": llm.Describe(cfg.Completion.Provider, cfg.Completion.Model),
	})

	// Answer sinks. Both are optional.
	var sinks []processor.AnswerSink
	var rdb *redis.Client
	var historyStore *history.Store
	if cfg.Redis.Enabled {
		rdb = history.NewClient(cfg.Redis)
		defer rdb.Close()
		historyStore = history.NewStore(rdb, cfg.Query.HistorySize, cfg.Query.HistoryTTL).
			WithLogger(logger.Named("history"))
		sinks = append(sinks, historyStore)

		healthChecker.Register("redis", observability.RedisHealthCheck(historyStore.Ping))
	}

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.Open(ctx, cfg.Audit)
		if err != nil {
			logger.Error(ctx, "Failed to open audit database", err, nil)
			os.Exit(1)
		}
		defer auditStore.Close()

		if err := audit.Migrate(auditStore.DB()); err != nil {
			logger.Error(ctx, "Failed to migrate audit database", err, nil)
			os.Exit(1)
		}
		auditStore.WithLogger(logger.Named("audit"))
		sinks = append(sinks, auditStore)

		healthChecker.Register("database", observability.DatabaseHealthCheck(auditStore.Ping))
	}

	qp := processor.New(processor.OptionsFromConfig(cfg), processor.Deps{
		Completion:        completion,
		ConnectGraph:      processor.GraphConnector(graph.NewConnector(cfg.Graph, logger.Named("graph"))),
		ConnectTimeSeries: processor.TimeSeriesConnector(timeseries.NewConnector(cfg.TimeSeries, logger.Named("timeseries"))),
		Sinks:             sinks,
		Logger:            logger.Named("query-processor"),
		Metrics:           metrics,
	})

	session, err := qp.Open(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to open session", err, nil)
		os.Exit(1)
	}
	defer func() {
		if err := session.Close(context.Background()); err != nil {
			logger.Warn(context.Background(), "Failed to close session", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	healthChecker.Register("graph", observability.GraphHealthCheck(func(ctx context.Context) error {
		return session.Ping(ctx, record.BackendGraph)
	}))
	healthChecker.Register("timeseries", observability.TimeSeriesHealthCheck(func(ctx context.Context) error {
		return session.Ping(ctx, record.BackendTimeSeries)
	}))
	healthChecker.Register("completion", observability.CompletionHealthCheck(func(ctx context.Context) error {
		return llm.Ping(ctx, completion)
	}))
	healthChecker.Register("memory", observability.MemoryHealthCheck(memoryLimit))

	var sessions *auth.SessionStore
	if rdb != nil {
		sessions = auth.NewSessionStore(rdb, auth.DefaultSessionExpiry)
	}
	authManager, err := auth.NewManager(auth.ConfigFrom(cfg.Auth), sessions, logger.Named("auth"))
	if err != nil {
		logger.Error(ctx, "Failed to initialize auth manager", err, nil)
		os.Exit(1)
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := authManager.CleanupExpired(); n > 0 {
					logger.Info(ctx, "Removed expired API keys", map[string]interface{}{"count": n})
				}
			}
		}
	}()

	opts := api.Options{
		Session: session,
		Auth:    authManager,
		Health:  healthChecker,
		Metrics: metrics,
		Logger:  logger.Named("api"),
	}
	if historyStore != nil {
		opts.History = historyStore
	}
	if auditStore != nil {
		opts.Audit = auditStore
	}

	logger.Info(ctx, "Query processor starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"version": version,
		"sources": loader.Sources(ctx),
	})
	if err := api.NewServer(opts).Run(ctx, ":"+cfg.Server.Port, shutdownTimeout); err != nil {
		logger.Error(ctx, "Server stopped", err, nil)
		os.Exit(1)
	}
}
