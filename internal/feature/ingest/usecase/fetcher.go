package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"astock_backend/internal/feature/ingest/domain"
	"astock_backend/internal/feature/ingest/domain/entity"
	"astock_backend/internal/feature/ingest/normalizer"
	"astock_backend/internal/shared/pacer"
)

// minCallTimeout は外部呼び出し1回あたりのタイムアウトの下限です。
const minCallTimeout = 5 * time.Second

// FetcherConfig は外部呼び出しのリトライと待機の設定です。
type FetcherConfig struct {
	MaxAttempts int           // 1銘柄あたりの最大試行回数
	RetryWindow pacer.Window  // 試行間の待機時間
	PaceWindow  pacer.Window  // 成功した呼び出しの間の待機時間
	CallTimeout time.Duration // 1回の呼び出しのタイムアウト（5秒未満は5秒に切り上げ）
}

// DefaultFetcherConfig は既定の設定を返します。
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		MaxAttempts: 3,
		RetryWindow: pacer.Window{Min: time.Second, Max: 2 * time.Second},
		PaceWindow:  pacer.Window{Min: 200 * time.Millisecond, Max: time.Second},
		CallTimeout: 30 * time.Second,
	}
}

func (c FetcherConfig) withDefaults() FetcherConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.CallTimeout < minCallTimeout {
		c.CallTimeout = minCallTimeout
	}
	return c
}

// Fetcher は外部データソースを単一ゴルーチンから順番に呼び出します。
// 呼び出し間のランダム待機、試行回数の上限、銘柄ごとのエラー分離を担います。
// 1回の実行ごとに生成し、ゴルーチン間で共有しません。
type Fetcher struct {
	source   MarketSource
	cfg      FetcherConfig
	pacer    *pacer.Pacer
	observer Observer
	paced    bool // 直前に呼び出しが完了しており、次の呼び出し前に待機が必要
}

// NewFetcher は新しい Fetcher を生成します。
func NewFetcher(source MarketSource, cfg FetcherConfig, p *pacer.Pacer, observer Observer) *Fetcher {
	if p == nil {
		p = pacer.New(nil, nil)
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Fetcher{source: source, cfg: cfg.withDefaults(), pacer: p, observer: observer}
}

// FetchSymbolList はマスターリストを取得します。失敗時は試行回数の上限までリトライします。
func (f *Fetcher) FetchSymbolList(ctx context.Context) ([]entity.SymbolName, error) {
	var out []entity.SymbolName
	err := f.withRetry(ctx, "symbol list", func(callCtx context.Context) error {
		list, err := f.source.ListAllSymbols(callCtx)
		if err != nil {
			return err
		}
		out = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchProfile は1銘柄の会社概要を取得します。
// すべての試行が失敗した場合は *domain.NotAvailableError を返します。
// 空のレスポンスはそのまま返します。
func (f *Fetcher) FetchProfile(ctx context.Context, symbol string) (entity.RawRecord, error) {
	var out entity.RawRecord
	err := f.withRetry(ctx, symbol, func(callCtx context.Context) error {
		rec, err := f.source.GetProfile(callCtx, symbol)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchQuarterSnapshot は四半期スナップショットを1回だけ取得します。リトライはしません。
func (f *Fetcher) FetchQuarterSnapshot(ctx context.Context, year, quarter int) ([]entity.RawRecord, error) {
	date, err := normalizer.QuarterDate(year, quarter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
	rows, err := f.source.GetQuarterSnapshot(callCtx, date)
	cancel()
	f.observer.FetchAttempt(err == nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, fmt.Errorf("%w: date %s: %v", domain.ErrExternalSnapshotFailed, date, err)
	}
	return rows, nil
}

// withRetry は直前の呼び出しからの待機を行ったうえで call を最大 MaxAttempts 回試行します。
// タイムアウトは1回の失敗として数えます。キャンセルは待機中と呼び出し後に検出します。
func (f *Fetcher) withRetry(ctx context.Context, symbol string, call func(ctx context.Context) error) error {
	if f.paced {
		if err := f.pacer.Wait(ctx, f.cfg.PaceWindow); err != nil {
			return cancelled(err)
		}
	}
	defer func() { f.paced = true }()

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := f.pacer.Wait(ctx, f.cfg.RetryWindow); err != nil {
				return cancelled(err)
			}
		}
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
		err := call(callCtx)
		cancel()
		f.observer.FetchAttempt(err == nil)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		lastErr = err
		slog.Warn("upstream call failed", "symbol", symbol, "attempt", attempt, "max_attempts", f.cfg.MaxAttempts, "error", err)
	}
	return &domain.NotAvailableError{Symbol: symbol, Err: lastErr}
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
}
