// Package db はリレーショナルデータベースへの接続とマイグレーションを提供します。
package db

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	gmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	connectTimeout = 60 * time.Second
	retryInterval  = 3 * time.Second
)

// Config はデータベース接続の設定です。
type Config struct {
	Driver        string // mysql (既定) または postgres
	User          string
	Password      string
	Name          string
	Host          string
	Port          string
	InstanceName  string // Cloud SQL のインスタンス接続名。設定時は Unix ソケットで接続します
	SSLMode       string // postgres のみ
	RunMigrations bool
}

// LoadConfigFromEnv は環境変数からデータベース設定を読み込みます。
func LoadConfigFromEnv() Config {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if driver == "" {
		driver = DriverMySQL
	}
	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	return Config{
		Driver:        driver,
		User:          os.Getenv("DB_USER"),
		Password:      os.Getenv("DB_PASSWORD"),
		Name:          os.Getenv("DB_NAME"),
		Host:          os.Getenv("DB_HOST"),
		Port:          os.Getenv("DB_PORT"),
		InstanceName:  os.Getenv("INSTANCE_CONNECTION_NAME"),
		SSLMode:       sslMode,
		RunMigrations: cast.ToBool(os.Getenv("RUN_MIGRATIONS")),
	}
}

// BuildDSN はドライバに応じた接続文字列を生成します。InstanceName が設定されている場合は Host/Port より優先します。
func BuildDSN(cfg Config) string {
	if cfg.Driver == DriverPostgres {
		host := cfg.Host
		if cfg.InstanceName != "" {
			host = "/cloudsql/" + cfg.InstanceName
		}
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=Asia/Shanghai",
			host, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
		if cfg.InstanceName == "" && cfg.Port != "" {
			dsn += " port=" + cfg.Port
		}
		return dsn
	}

	if cfg.InstanceName != "" {
		return fmt.Sprintf("%s:%s@unix(/cloudsql/%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
			cfg.User, cfg.Password, cfg.InstanceName, cfg.Name)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
}

// Opener は DSN から *gorm.DB を開く関数です。テストで差し替えます。
type Opener func(dsn string) (*gorm.DB, error)

// NewOpener はドライバに応じた Opener を返します。
// 一意制約違反を gorm.ErrDuplicatedKey に変換するため TranslateError を有効にします。
func NewOpener(driver string) (Opener, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
	switch driver {
	case DriverMySQL, "":
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(gmysql.Open(dsn), gcfg) }, nil
	case DriverPostgres:
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(postgres.Open(dsn), gcfg) }, nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
}

// ConnectWithRetry は timeout に達するまで retryInterval 間隔で接続を試みます。
// 次の試行が期限を超える場合は最後のエラーを返します。
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("db connect failed after %d attempts: %w", attempt, err)
		}
		slog.Warn("DB connect failed, retrying", "attempt", attempt, "error", err)
		time.Sleep(retryInterval)
	}
}

// OpenDB は設定に従って接続し、RunMigrations が有効な場合は models をマイグレーションします。
func OpenDB(cfg Config, models ...any) (*gorm.DB, error) {
	open, err := NewOpener(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := ConnectWithRetry(BuildDSN(cfg), connectTimeout, open)
	if err != nil {
		return nil, err
	}
	slog.Info("DB connection successful", "driver", cfg.Driver, "name", cfg.Name)

	if cfg.RunMigrations && len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		slog.Info("DB migrations applied", "models", len(models))
	}
	return db, nil
}
