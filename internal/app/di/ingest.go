package di

import (
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
	"gorm.io/gorm"

	"astock_backend/internal/feature/ingest/adapters"
	"astock_backend/internal/feature/ingest/usecase"
	"astock_backend/internal/platform/cache"
	"astock_backend/internal/platform/externalapi/akshare"
	"astock_backend/internal/platform/lock"
)

// IngestConfig はインジェストの実行設定とロックの有効期限です。
type IngestConfig struct {
	Usecase usecase.Config
	LockTTL time.Duration
}

// LoadIngestConfig は INGEST_* 環境変数から設定を読み込みます。
// 不正な値は既定値のままにします。外部呼び出しのタイムアウトは upstream の設定に合わせます。
func LoadIngestConfig(upstream akshare.Config) IngestConfig {
	cfg := usecase.DefaultConfig()
	f := &cfg.Fetcher

	cfg.ChunkSize = positiveInt("INGEST_CHUNK_SIZE", cfg.ChunkSize)
	f.MaxAttempts = positiveInt("INGEST_MAX_ATTEMPTS", f.MaxAttempts)
	f.RetryWindow.Min = duration("INGEST_RETRY_MIN", f.RetryWindow.Min)
	f.RetryWindow.Max = duration("INGEST_RETRY_MAX", f.RetryWindow.Max)
	f.PaceWindow.Min = duration("INGEST_PACE_MIN", f.PaceWindow.Min)
	f.PaceWindow.Max = duration("INGEST_PACE_MAX", f.PaceWindow.Max)
	if upstream.Timeout > 0 {
		f.CallTimeout = upstream.Timeout
	}
	if v := strings.TrimSpace(os.Getenv("INGEST_DATA_SOURCE")); v != "" {
		cfg.DataSource = v
	}

	return IngestConfig{
		Usecase: cfg,
		LockTTL: duration("INGEST_LOCK_TTL", lock.DefaultTTL),
	}
}

// NewIngestUsecase wires the gorm store, the run repository, the run lock and the upstream client.
func NewIngestUsecase(db *gorm.DB, rdb *redis.Client, source usecase.MarketSource, cfg IngestConfig, opts ...usecase.Option) *usecase.IngestUsecase {
	return usecase.NewIngestUsecase(
		source,
		adapters.NewEquityStore(db),
		NewRunRepository(rdb, db),
		NewRunLocker(rdb, cfg.LockTTL),
		cfg.Usecase,
		opts...,
	)
}

func positiveInt(key string, def int) int {
	n, err := cast.ToIntE(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := cast.ToDurationE(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// NewRunRepository creates a RunRepository implementation.
// If Redis is available, finished reports are served from a Redis cache in front of the database.
func NewRunRepository(rdb *redis.Client, db *gorm.DB) usecase.RunRepository {
	runs := adapters.NewRunRepository(db)
	if rdb != nil {
		return cache.NewCachingRunRepository(rdb, 0, runs, "ingest_run")
	}
	return runs
}
