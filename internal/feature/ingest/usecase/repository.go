// Package usecase は外部の銘柄データソースから参照情報と四半期損益計算書を取り込むユースケースを実装します。
package usecase

import (
	"context"
	"time"

	"astock_backend/internal/feature/ingest/domain/entity"
)

// MarketSource は外部の株式データソースを抽象化します。
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type MarketSource interface {
	// ListAllSymbols は上場銘柄のマスターリストを上流の順序で返します。重複を含む場合があります。
	ListAllSymbols(ctx context.Context) ([]entity.SymbolName, error)
	// GetProfile は1銘柄の会社概要を上流のカラム名をキーとするレコードで返します。
	GetProfile(ctx context.Context, symbol string) (entity.RawRecord, error)
	// GetQuarterSnapshot は報告日 (YYYYMMDD) の損益計算書スナップショットを返します。
	GetQuarterSnapshot(ctx context.Context, date string) ([]entity.RawRecord, error)
}

// Store は取り込み結果の永続化レイヤーを抽象化します。
// 書き込みエラーは domain.ErrStoreConflict または domain.ErrStoreFailure でラップして返します。
type Store interface {
	// ListExistingSymbols は永続化済みの銘柄コード集合（DeltaIndex）を返します。
	ListExistingSymbols(ctx context.Context) (map[string]struct{}, error)
	// InsertReferenceChunk は1チャンクを1トランザクションで挿入します。
	InsertReferenceChunk(ctx context.Context, rows []entity.EquityReference) error
	// BeginQuarterReplace は四半期スライス置き換え用のトランザクションを開始します。
	BeginQuarterReplace(ctx context.Context, year, quarter int) (QuarterTxn, error)
}

// QuarterTxn は四半期スライスを削除してから挿入するための単一トランザクションです。
type QuarterTxn interface {
	DeleteQuarter(ctx context.Context, year, quarter int) (int64, error)
	InsertQuarterRows(ctx context.Context, rows []entity.QuarterlyIncomeStatement) error
	Commit() error
	Rollback() error
}

// RunRepository は実行レポートを保存・参照します。
type RunRepository interface {
	Save(ctx context.Context, report *entity.IngestRunReport) error
	Find(ctx context.Context, id string) (*entity.IngestRunReport, error)
}

// RunLocker は同一種別・同一スライスの同時実行を防ぐロックです。
// 取得済みの場合は domain.ErrRunConflict を返します。
type RunLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Observer は実行中のイベントをメトリクスに転送します。観測は実行結果に影響しません。
type Observer interface {
	RecordsProcessed(kind entity.RunKind, outcome string, n int)
	FetchAttempt(ok bool)
	RunFinished(kind entity.RunKind, status entity.RunStatus, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) RecordsProcessed(entity.RunKind, string, int) {}

func (nopObserver) FetchAttempt(bool) {}

func (nopObserver) RunFinished(entity.RunKind, entity.RunStatus, time.Duration) {}

// Record outcomes reported to the Observer.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped_existing"
)
