package main

import (
	"context"
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

	"semaphore/portal/internal/apiclient"
	"semaphore/portal/internal/config"
	portalgrpc "semaphore/portal/internal/grpc"
	internalhttp "semaphore/portal/internal/http"
	"semaphore/portal/internal/jobs"
	"semaphore/portal/internal/logging"
	"semaphore/portal/internal/session"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, probe, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("session store init failed", zap.String("store", cfg.SessionStore), zap.Error(err))
	}
	defer closeStore()

	api := apiclient.New(cfg.APIBaseURL, cfg.APITimeout)
	defer api.Close()

	sessions := session.NewManager(session.Instrument(store, cfg.SessionStore), cfg.SessionTTL, cfg.CookieSecure, logger)
	server, err := internalhttp.NewServer(cfg, logger, api, sessions)
	if err != nil {
		logger.Fatal("server init failed", zap.Error(err))
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	health := portalgrpc.NewHealth(logger)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(portalgrpc.NewLoggingUnaryInterceptor(logger)))
	health.Register(grpcServer)
	health.Watch(ctx, probe, 15*time.Second, 5*time.Second)

	jobs.StartSessionSweepJob(ctx, sessions.Store(), cfg.SweepInterval, logger)

	go func() {
		logger.Info("portal http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("grpc listen error", zap.Error(err))
		}
		logger.Info("portal grpc listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(listener); err != nil {
			logger.Fatal("grpc server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()
}

// openStore builds the configured session backend with its health probe and cleanup.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (session.Store, portalgrpc.Probe, func(), error) {
	switch cfg.SessionStore {
	case config.StoreMemory, "":
		return session.NewMemoryStore(), nil, func() {}, nil

	case config.StoreRedis:
		if cfg.RedisAddr == "" {
			return nil, nil, nil, fmt.Errorf("REDIS_ADDR required for %s sessions", config.StoreRedis)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		probe := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		closer := func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}
		return session.NewRedisStore(client), probe, closer, nil

	case config.StorePostgres:
		pool, err := session.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("db connection: %w", err)
		}
		store := session.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("db migrate: %w", err)
		}
		return store, pool.Ping, pool.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
