// Package metrics はインジェスト実行のPrometheusメトリクスを提供します。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"astock_backend/internal/feature/ingest/domain/entity"
	"astock_backend/internal/feature/ingest/usecase"
)

const namespace = "astock_ingest"

// IngestMetrics は usecase.Observer を実装し、実行中のイベントをコレクターに記録します。
type IngestMetrics struct {
	records       *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	fetchAttempts *prometheus.CounterVec
}

var _ usecase.Observer = (*IngestMetrics)(nil)

// NewIngestMetrics はコレクターを reg に登録して返します。
// テストでは prometheus.NewRegistry() を渡します。
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	f := promauto.With(reg)
	return &IngestMetrics{
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records processed by ingest runs, by outcome",
		}, []string{"kind", "outcome"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished ingest runs, by terminal status",
		}, []string{"kind", "status"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished ingest runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"kind"}),
		fetchAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Upstream fetch attempts, by result",
		}, []string{"result"}),
	}
}

func (m *IngestMetrics) RecordsProcessed(kind entity.RunKind, outcome string, n int) {
	if n <= 0 {
		return
	}
	m.records.WithLabelValues(string(kind), outcome).Add(float64(n))
}

func (m *IngestMetrics) FetchAttempt(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	m.fetchAttempts.WithLabelValues(result).Inc()
}

func (m *IngestMetrics) RunFinished(kind entity.RunKind, status entity.RunStatus, elapsed time.Duration) {
	m.runs.WithLabelValues(string(kind), string(status)).Inc()
	m.runDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}
