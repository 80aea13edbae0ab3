// Package redis はRedisクライアントの生成を提供します。
package redis

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Config はRedis接続の設定です。Host が空の場合、Redis は使いません。
type Config struct {
	Host     string
	Port     string
	Password string
}

// LoadConfig は環境変数からRedisの設定を読み込みます。
func LoadConfig() Config {
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	return Config{
		Host:     strings.TrimSpace(os.Getenv("REDIS_HOST")),
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
	}
}

// Enabled はRedisの接続先が設定されているかどうかを返します。
func (c Config) Enabled() bool { return c.Host != "" }

// Addr は host:port 形式のアドレスを返します。
func (c Config) Addr() string { return c.Host + ":" + c.Port }

// NewRedisClient はクライアントを生成し、疎通を確認します。
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	addr := cfg.Addr()
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       0,
	})

	// 接続確認
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("Redis connection failed", "address", addr, "error", err)
		_ = rdb.Close()
		return nil, err
	}

	slog.Info("Redis connection successful", "address", addr)
	return rdb, nil
}
