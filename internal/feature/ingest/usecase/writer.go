package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"astock_backend/internal/feature/ingest/domain"
	"astock_backend/internal/feature/ingest/domain/entity"
)

// DefaultChunkSize は1トランザクションで書き込む行数の既定値です。
const DefaultChunkSize = 100

// ChunkResult は1チャンクの書き込み結果です。Err は一意制約違反でロールバックされた場合のみ設定されます。
type ChunkResult struct {
	Rows []entity.EquityReference
	Err  error
}

// Writer はチャンク単位でアトミックに永続化します。
type Writer struct {
	store     Store
	chunkSize int
}

// NewWriter は新しい Writer を生成します。chunkSize が0以下の場合は DefaultChunkSize を使います。
func NewWriter(store Store, chunkSize int) *Writer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Writer{store: store, chunkSize: chunkSize}
}

// AppendReference は batch を固定サイズのチャンクに分けて順番にコミットします。
// 一意制約違反のチャンクはロールバックして結果に記録し、後続チャンクを続行します。
// それ以外のストア障害とキャンセルは処理を中断してエラーを返します。
// チャンクの書き込み自体はキャンセルの影響を受けず、完了するかロールバックされます。
func (w *Writer) AppendReference(ctx context.Context, batch []entity.EquityReference) ([]ChunkResult, error) {
	results := make([]ChunkResult, 0, (len(batch)+w.chunkSize-1)/w.chunkSize)
	for start := 0; start < len(batch); start += w.chunkSize {
		if err := ctx.Err(); err != nil {
			return results, cancelled(err)
		}
		end := min(start+w.chunkSize, len(batch))
		chunk := batch[start:end]

		err := w.store.InsertReferenceChunk(context.WithoutCancel(ctx), chunk)
		switch {
		case err == nil:
			slog.Info("reference chunk committed", "chunk", len(results), "rows", len(chunk))
			results = append(results, ChunkResult{Rows: chunk})
		case errors.Is(err, domain.ErrStoreConflict):
			slog.Warn("reference chunk rolled back", "rows", len(chunk), "first_symbol", chunk[0].Symbol, "error", err)
			results = append(results, ChunkResult{Rows: chunk, Err: err})
		default:
			return results, asStoreFailure(err)
		}
	}
	return results, nil
}

// ReplaceQuarterSliceBegin はトランザクションを開始し、(year, quarter) の既存行を削除します。
// 削除はコミットまで他から見えません。
func (w *Writer) ReplaceQuarterSliceBegin(ctx context.Context, year, quarter int) (QuarterTxn, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, cancelled(err)
	}
	txCtx := context.WithoutCancel(ctx)
	txn, err := w.store.BeginQuarterReplace(txCtx, year, quarter)
	if err != nil {
		return nil, 0, asStoreFailure(err)
	}
	deleted, err := txn.DeleteQuarter(txCtx, year, quarter)
	if err != nil {
		rollback(txn)
		return nil, 0, asStoreFailure(err)
	}
	return txn, deleted, nil
}

// AppendQuarter は同じトランザクションで新しいスライスを挿入してコミットします。
// 失敗した場合はロールバックし、スライスは実行前の内容に戻ります。
func (w *Writer) AppendQuarter(ctx context.Context, txn QuarterTxn, rows []entity.QuarterlyIncomeStatement) error {
	txCtx := context.WithoutCancel(ctx)
	if len(rows) > 0 {
		if err := txn.InsertQuarterRows(txCtx, rows); err != nil {
			rollback(txn)
			return asStoreFailure(err)
		}
	}
	if err := txn.Commit(); err != nil {
		rollback(txn)
		return asStoreFailure(err)
	}
	return nil
}

func rollback(txn QuarterTxn) {
	if err := txn.Rollback(); err != nil {
		slog.Error("failed to roll back quarter replace", "error", err)
	}
}

// asStoreFailure はストアのエラーを StoreFailure として扱います。一意制約違反もここでは致命的です。
func asStoreFailure(err error) error {
	if errors.Is(err, domain.ErrStoreFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
}
