package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/cartsync/internal/adapter/auth"
	"github.com/rl1809/cartsync/internal/adapter/events"
	"github.com/rl1809/cartsync/internal/adapter/gateway"
	"github.com/rl1809/cartsync/internal/adapter/handler"
	"github.com/rl1809/cartsync/internal/adapter/storage"
	"github.com/rl1809/cartsync/internal/config"
	"github.com/rl1809/cartsync/internal/core/service"
	"github.com/rl1809/cartsync/internal/port"
)

const eventQueueSize = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backup store
	kv, closeKV, err := openBackupStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open backup store", zap.String("backend", cfg.BackupBackend), zap.Error(err))
	}
	defer closeKV()
	logger.Info("backup store ready", zap.String("backend", cfg.BackupBackend))

	// Engine
	gw, err := gateway.NewHTTPGateway(cfg.CartAPIURL, gateway.Options{
		Timeout: cfg.RequestTimeout,
		Tokens:  tokenSource(cfg),
	})
	if err != nil {
		logger.Fatal("failed to create cart gateway", zap.Error(err))
	}

	backup := service.NewBackup(kv, cfg.BackupKey, logger)
	store := service.NewCartStore(gw, backup, service.NewNotificationSink(cfg.NotificationTTL), logger)

	// Event relay
	var relay *events.Relay
	if cfg.RabbitMQURL != "" {
		conn, err := events.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("failed to connect rabbitmq", zap.Error(err))
		}
		defer conn.Close()

		publisher, err := events.NewRabbitPublisher(conn)
		if err != nil {
			logger.Fatal("failed to create event publisher", zap.Error(err))
		}
		defer publisher.Close()

		relay = events.NewRelay(publisher, eventQueueSize, logger)
		unsubscribe := relay.Attach(store)
		defer unsubscribe()
		logger.Info("publishing cart events", zap.String("exchange", events.EventsExchange))
	}

	// gRPC health
	healthSrv := handler.NewGRPCHealth()
	grpcServer := grpc.NewServer()
	healthSrv.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initial load
	initErr := store.Initialize(ctx)
	if initErr != nil {
		logger.Warn("initial cart load failed", zap.Error(initErr))
	}
	healthSrv.MarkInitialized(initErr)

	// HTTP facade
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(store, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	healthSrv.Shutdown()
	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	store.Close()
	if relay != nil {
		if err := relay.Close(shutdownCtx); err != nil {
			logger.Warn("event relay did not drain", zap.Error(err))
		}
	}
	logger.Info("cart session closed")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return cfg.Build()
}

func tokenSource(cfg config.Config) port.TokenSource {
	switch {
	case cfg.AuthTokenFile != "":
		return auth.NewFileToken(cfg.AuthTokenFile)
	case cfg.AuthToken != "":
		return auth.StaticToken(cfg.AuthToken)
	}
	return nil
}

// openBackupStore connects the configured backend. The returned func
// releases it.
func openBackupStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (port.KeyValueStore, func(), error) {
	switch cfg.BackupBackend {
	case config.BackendMemory:
		return storage.NewMemoryAdapter(), func() {}, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 10,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return storage.NewRedisAdapter(rdb, ""), func() { rdb.Close() }, nil

	case config.BackendMySQL, config.BackendPostgres, config.BackendSQLite:
		dialect, _ := storage.DialectByName(cfg.BackupBackend)
		dsn := sqlDSN(cfg)

		if err := storage.RunMigrations(dialect, dsn, logger); err != nil {
			return nil, nil, err
		}
		db, err := storage.OpenSQL(ctx, dialect, dsn)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewSQLAdapter(db, dialect, ""), func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown backup backend %q", cfg.BackupBackend)
}

func sqlDSN(cfg config.Config) string {
	switch cfg.BackupBackend {
	case config.BackendMySQL:
		return cfg.MySQLDSN
	case config.BackendPostgres:
		return cfg.PostgresDSN
	}
	return cfg.SQLitePath
}
