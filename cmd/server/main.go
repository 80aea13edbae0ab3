package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	redisv9 "github.com/redis/go-redis/v9"

	"astock_backend/internal/app/di"
	"astock_backend/internal/app/router"
	"astock_backend/internal/feature/ingest/adapters"
	ingesthandler "astock_backend/internal/feature/ingest/transport/handler"
	"astock_backend/internal/feature/ingest/usecase"
	"astock_backend/internal/platform/db"
	"astock_backend/internal/platform/externalapi/akshare"
	"astock_backend/internal/platform/http/handler"
	jwtmw "astock_backend/internal/platform/jwt"
	"astock_backend/internal/platform/logging"
	"astock_backend/internal/platform/metrics"
	infraredis "astock_backend/internal/platform/redis"
)

const (
	shutdownTimeout       = 30 * time.Second
	ingestShutdownTimeout = 20 * time.Second
)

func main() {
	// .env は任意
	_ = godotenv.Load()

	logger, closer := logging.NewLogger(logging.LoadConfig())
	defer func() { _ = closer.Close() }()
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// db
	gdb, err := db.OpenDB(db.LoadConfigFromEnv(), adapters.Models()...)
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	checks := map[string]handler.CheckFunc{"db": sqlDB.PingContext}

	// Redis
	var rdb *redisv9.Client
	if rcfg := infraredis.LoadConfig(); rcfg.Enabled() {
		if tmp, err := infraredis.NewRedisClient(ctx, rcfg); err != nil {
			slog.Warn("Redis unavailable. Falling back to in-process run locks.", "error", err)
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					slog.Error("failed to close Redis client", "error", err)
				}
			}()
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer := metrics.NewIngestMetrics(reg)

	// Usecase
	upstream := akshare.LoadConfig()
	uc := di.NewIngestUsecase(gdb, rdb, di.NewMarketSource(upstream), di.LoadIngestConfig(upstream),
		usecase.WithObserver(observer))

	// ルータ生成
	r := router.NewRouter(ingesthandler.NewIngestHandler(uc), reg, checks)

	// JWT_SECRETチェック（開発中の注意喚起）
	if os.Getenv(jwtmw.EnvKeyJWTSecret) == "" {
		slog.Warn("JWT_SECRET is not set. Trigger endpoints will answer 500 until it is configured.")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
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
	slog.Info("shutdown signal received")

	// 先に実行中のインジェスト（同期実行を含む）を止め、DB/Redis が開いているうちに
	// Aborted(cancelled) の保存とロック解放を終えさせます
	ingestCtx, cancelIngest := context.WithTimeout(context.Background(), ingestShutdownTimeout)
	defer cancelIngest()
	if err := uc.Shutdown(ingestCtx); err != nil {
		slog.Error("ingest runs did not stop in time", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	slog.Info("server exited")
	return nil
}
