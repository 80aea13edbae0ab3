package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ingesthandler "astock_backend/internal/feature/ingest/transport/handler"
	"astock_backend/internal/platform/http/handler"
	jwtmw "astock_backend/internal/platform/jwt"
)

// NewRouter はインジェストAPIのルーターを生成します。
// gatherer はメトリクスの公開元、checks は /readyz で確認する依存先です。
func NewRouter(ingest *ingesthandler.IngestHandler, gatherer prometheus.Gatherer, checks map[string]handler.CheckFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// 認証不要
	// 導通確認用
	r.Match([]string{"GET", "HEAD", "OPTIONS"}, "/healthz", handler.Health)
	r.GET("/readyz", handler.Readiness(checks))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// 認証必須のルート
	// ingest スコープを持つオペレータートークンが必要
	auth := r.Group("/")
	auth.Use(jwtmw.AuthRequired(jwtmw.ScopeIngest))
	{
		auth.POST("/referenceSync", ingest.ReferenceSync)
		auth.POST("/quarterSync", ingest.QuarterSync)
		auth.GET("/ingestRuns/:id", ingest.GetRun)
		auth.DELETE("/ingestRuns/:id", ingest.CancelRun)
	}

	return r
}
