package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/schema-assistant/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/schema-assistant/pkg/adapters/datasource/clickhouse"
	_ "github.com/ekaya-inc/schema-assistant/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/schema-assistant/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/schema-assistant/pkg/config"
	"github.com/ekaya-inc/schema-assistant/pkg/handlers"
	"github.com/ekaya-inc/schema-assistant/pkg/llm"
	"github.com/ekaya-inc/schema-assistant/pkg/mcp"
	"github.com/ekaya-inc/schema-assistant/pkg/metrics"
	"github.com/ekaya-inc/schema-assistant/pkg/middleware"
	"github.com/ekaya-inc/schema-assistant/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.IsLocal() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Log startup configuration. Passwords and API keys stay out of the log.
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("store_type", cfg.Store.Type),
		zap.String("store", net.JoinHostPort(cfg.Store.Host, strconv.Itoa(cfg.Store.Port))),
		zap.String("database", cfg.Store.Database),
		zap.Strings("allowed_tables", cfg.AllowedTables),
		zap.String("completion_provider", cfg.Completion.Provider),
		zap.String("completion_model", cfg.Completion.Model),
		zap.Duration("catalog_cache_ttl", cfg.Catalog.CacheTTL),
	)
	metrics.BuildInfo.WithLabelValues(cfg.Version).Set(1)

	reader, err := datasource.Open(ctx, cfg.Store.Type, &datasource.ConnectionConfig{
		Host:        cfg.Store.Host,
		Port:        cfg.Store.Port,
		User:        cfg.Store.User,
		Password:    cfg.Store.Password,
		Database:    cfg.Store.Database,
		Secure:      cfg.Store.Secure,
		SSLMode:     cfg.Store.SSLMode,
		DialTimeout: cfg.Timeouts.Store,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	catalog := services.NewCatalogService(reader, services.CatalogOptions{
		AllowedTables: cfg.AllowedTables,
		MaxSampleRows: cfg.Catalog.MaxSampleRows,
		StoreTimeout:  cfg.Timeouts.Store,
		CacheTTL:      cfg.Catalog.CacheTTL,
	}, logger)

	// The store may come up after us; chat falls back until it does.
	if err := catalog.Ping(ctx); err != nil {
		logger.Warn("Data store not reachable at startup", zap.String("store_type", cfg.Store.Type))
	}

	registry := services.NewToolRegistry(catalog, logger)
	if err := services.RegisterSchemaTools(registry, catalog, cfg.Catalog.DefaultSampleRows); err != nil {
		return err
	}

	completion, err := llm.NewCompletionClient(cfg.Completion, cfg.Timeouts.Completion, cfg.AllowedTables, logger)
	if err != nil {
		return err
	}

	intent := services.NewIntentAnalyzer(completion, logger)
	chat := services.NewChatService(catalog, registry, intent, completion, logger)

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, catalog, completion, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(chat, cfg.Timeouts.Request, logger).RegisterRoutes(mux)
	handlers.NewToolsHandler(registry, logger).RegisterRoutes(mux)

	mcpServer, err := mcp.NewServer(cfg.Version, registry, logger)
	if err != nil {
		return err
	}
	mux.Handle("/mcp", middleware.MCPRequestLogger(logger)(mcpServer.NewStreamableHTTPServer()))
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(middleware.Metrics(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting schema-assistant",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
