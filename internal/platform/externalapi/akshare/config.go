// Package akshare は AKTools 互換の HTTP ブリッジ経由で A 株の市場データを取得するクライアントを提供します。
package akshare

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const (
	DefaultBaseURL         = "http://127.0.0.1:8080"
	DefaultTimeout         = 30 * time.Second
	DefaultListEndpoint    = "stock_info_a_code_name"
	DefaultProfileEndpoint = "stock_profile_cninfo"
	DefaultQuarterEndpoint = "stock_lrb_em"
)

// Config は AKTools ブリッジクライアントの設定を保持します。
type Config struct {
	BaseURL         string        // ブリッジのベースURL（例: "http://aktools:8080"）
	Timeout         time.Duration // 1回の呼び出しのタイムアウト
	ListEndpoint    string        // マスターリストを返す関数名
	ProfileEndpoint string        // 会社概要を返す関数名
	QuarterEndpoint string        // 四半期損益計算書を返す関数名
}

// LoadConfig は環境変数から設定を読み込みます。未設定の項目には既定値を使います。
func LoadConfig() Config {
	cfg := Config{
		BaseURL:         strings.TrimRight(envOr("AKSHARE_BASE_URL", DefaultBaseURL), "/"),
		Timeout:         DefaultTimeout,
		ListEndpoint:    envOr("AKSHARE_LIST_ENDPOINT", DefaultListEndpoint),
		ProfileEndpoint: envOr("AKSHARE_PROFILE_ENDPOINT", DefaultProfileEndpoint),
		QuarterEndpoint: envOr("AKSHARE_QUARTER_ENDPOINT", DefaultQuarterEndpoint),
	}
	if v := os.Getenv("AKSHARE_TIMEOUT"); v != "" {
		if d, err := cast.ToDurationE(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
