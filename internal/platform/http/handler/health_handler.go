// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// readinessTimeout は依存先1件あたりの疎通確認の上限時間です。
const readinessTimeout = 2 * time.Second

// Health はサービスヘルスチェック用の /healthz エンドポイントを処理します。
// 依存先には触れず、プロセスが応答できることだけを返します。
func Health(c *gin.Context) {
	// 明示的にキャッシュを防止
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// CheckFunc は依存先（DB、Redis など）の疎通を確認します。
type CheckFunc func(ctx context.Context) error

// Readiness は /readyz 用のハンドラーを返します。
// すべての確認が成功した場合は200、1つでも失敗した場合は503を返します。
func Readiness(checks map[string]CheckFunc) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")

		status := http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
			err := checks[name](ctx)
			cancel()
			if err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "unavailable"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}
