// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"astock_backend/internal/feature/ingest/domain/entity"
	"astock_backend/internal/feature/ingest/usecase"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CachingRunRepository decorates a RunRepository with Redis caching.
// Only terminal reports are cached; they never change once written.
type CachingRunRepository struct {
	inner     usecase.RunRepository
	rdb       redis.Cmdable
	ttl       time.Duration
	namespace string
}

var _ usecase.RunRepository = (*CachingRunRepository)(nil)

// NewCachingRunRepository decorates a RunRepository with Redis caching.
// If ttl is 0, it defaults to 24 hours. If namespace is empty, it uses "ingest_run".
func NewCachingRunRepository(rdb redis.Cmdable, ttl time.Duration, inner usecase.RunRepository, namespace string) *CachingRunRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if namespace == "" {
		namespace = "ingest_run"
	}
	return &CachingRunRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Save writes through to the underlying repository and caches terminal reports.
func (c *CachingRunRepository) Save(ctx context.Context, report *entity.IngestRunReport) error {
	if err := c.inner.Save(ctx, report); err != nil {
		return err
	}
	if c.rdb == nil {
		return nil
	}
	if report.Status.Terminal() {
		c.store(ctx, c.cacheKey(report.ID), report)
	}
	return nil
}

// Find retrieves a report, checking cache first then falling back to the database.
func (c *CachingRunRepository) Find(ctx context.Context, id string) (*entity.IngestRunReport, error) {
	if c.rdb == nil {
		return c.inner.Find(ctx, id)
	}

	key := c.cacheKey(id)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out entity.IngestRunReport
		if err := json.Unmarshal(b, &out); err == nil {
			return &out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to database
	out, err := c.inner.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (terminal only)
	if out.Status.Terminal() {
		c.store(ctx, key, out)
	}
	return out, nil
}

func (c *CachingRunRepository) store(ctx context.Context, key string, report *entity.IngestRunReport) {
	b, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		slog.Warn("failed to cache run report", "key", key, "error", err)
	}
}

// cacheKey generates a cache key for a run id.
func (c *CachingRunRepository) cacheKey(id string) string {
	return c.namespace + ":" + safe(id)
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
