package di

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"astock_backend/internal/feature/ingest/usecase"
	"astock_backend/internal/platform/lock"
)

// NewRunLocker creates a RunLocker implementation.
// If Redis is available, it returns a Redis-backed lock shared across processes.
// Otherwise, it falls back to an in-process lock.
func NewRunLocker(rdb *redis.Client, ttl time.Duration) usecase.RunLocker {
	if rdb != nil {
		return lock.NewRedisLocker(rdb, ttl)
	}
	slog.Warn("Redis unavailable. Ingest runs are only serialized within this process.")
	return lock.NewLocalLocker()
}
