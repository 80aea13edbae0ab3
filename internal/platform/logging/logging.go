// Package logging は slog のロガーを設定から生成します。
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatJSON = "json"
	FormatText = "text"

	defaultMaxSizeMB  = 100
	defaultMaxBackups = 5
	defaultMaxAgeDays = 30
)

// Config はロガーの設定です。File が空の場合は標準出力に書き込みます。
type Config struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// LoadConfig は LOG_* 環境変数から設定を読み込みます。
func LoadConfig() Config {
	return Config{
		Level:      os.Getenv("LOG_LEVEL"),
		Format:     os.Getenv("LOG_FORMAT"),
		File:       os.Getenv("LOG_FILE"),
		MaxSizeMB:  intOr(os.Getenv("LOG_MAX_SIZE_MB"), defaultMaxSizeMB),
		MaxBackups: intOr(os.Getenv("LOG_MAX_BACKUPS"), defaultMaxBackups),
		MaxAgeDays: intOr(os.Getenv("LOG_MAX_AGE_DAYS"), defaultMaxAgeDays),
	}
}

// NewLogger は設定に従ってロガーを生成します。
// 返される io.Closer はファイル出力時にローテーション中のファイルを閉じます。
func NewLogger(cfg Config) (*slog.Logger, io.Closer) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		w, closer = lj, lj
	}
	return New(w, cfg), closer
}

// New は w に書き込むロガーを生成します。
func New(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, FormatText) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel は debug/info/warn/error を slog.Level に変換します。不明な値は info です。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func intOr(s string, def int) int {
	n, err := cast.ToIntE(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
