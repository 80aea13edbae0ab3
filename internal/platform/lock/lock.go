// Package lock は同一スライスのインジェスト実行を排他するロックを提供します。
// Redis が使える場合はプロセスをまたいで、使えない場合はプロセス内で排他します。
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"astock_backend/internal/feature/ingest/domain"
	"astock_backend/internal/feature/ingest/usecase"
)

const (
	// DefaultTTL はRedisロックの有効期限の既定値です。期限切れ後は別の実行が取得できます。
	DefaultTTL = 6 * time.Hour

	releaseTimeout = 5 * time.Second
)

// releaseScript はトークンが一致する場合だけキーを削除します。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker は SET NX PX によるロックです。
type RedisLocker struct {
	client   redis.Cmdable
	ttl      time.Duration
	newToken func() string
}

var _ usecase.RunLocker = (*RedisLocker)(nil)

// NewRedisLocker は新しい RedisLocker を生成します。ttl が0以下の場合は DefaultTTL を使います。
func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl, newToken: uuid.NewString}
}

// Acquire はロックを取得します。取得済みの場合は domain.ErrRunConflict を返します。
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := l.newToken()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunConflict, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				slog.Error("failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}

// LocalLocker はプロセス内のロックです。
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ usecase.RunLocker = (*LocalLocker)(nil)

// NewLocalLocker は新しい LocalLocker を生成します。
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunConflict, key)
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
