package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"astock_backend/internal/feature/ingest/domain"
	"astock_backend/internal/feature/ingest/domain/entity"
	"astock_backend/internal/feature/ingest/normalizer"
	"astock_backend/internal/shared/pacer"
)

// ReferenceLockKey は参照データ同期のシングルトンロックのキーです。
const ReferenceLockKey = "ingest:reference"

// QuarterLockKey は四半期同期のスライスごとのロックキーを返します。
func QuarterLockKey(year, quarter int) string {
	return fmt.Sprintf("ingest:quarter:%d:%d", year, quarter)
}

// IngestUsecase は1回のインジェスト実行を開始から終了状態まで進めるコーディネーターです。
// 実行中のレポートはその実行のゴルーチンだけが更新し、他からはスナップショット経由で参照します。
type IngestUsecase struct {
	source   MarketSource
	store    Store
	runs     RunRepository
	locker   RunLocker
	cfg      Config
	now      func() time.Time
	sleeper  pacer.Sleeper
	newRand  func() *rand.Rand
	observer Observer
	newID    func() string
	loc      *time.Location

	mu     sync.Mutex
	live   map[string]*activeRun
	closed bool           // Shutdown 後は新しい実行を受け付けません
	wg     sync.WaitGroup // 同期・非同期すべての実行
}

type activeRun struct {
	report   *entity.IngestRunReport
	snapshot *entity.IngestRunReport // mu で保護
	cancel   context.CancelFunc
	release  func()
}

type runBody func(ctx context.Context, run *activeRun) error

// NewIngestUsecase は新しい IngestUsecase を生成します。runs が nil の場合、レポートは永続化されません。
func NewIngestUsecase(source MarketSource, store Store, runs RunRepository, locker RunLocker, cfg Config, opts ...Option) *IngestUsecase {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.DataSource == "" {
		cfg.DataSource = DefaultDataSource
	}
	u := &IngestUsecase{
		source:   source,
		store:    store,
		runs:     runs,
		locker:   locker,
		cfg:      cfg,
		now:      time.Now,
		newRand:  func() *rand.Rand { return nil },
		observer: nopObserver{},
		newID:    defaultID,
		loc:      defaultLocation(),
		live:     make(map[string]*activeRun),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// RunReferenceSync は参照データ同期を実行し、終了状態のレポートを返します。
// 実行が中断した場合はレポートとともにエラーを返します。
// 実行が開始されなかった場合（同時実行の競合など）はレポートは nil です。
func (u *IngestUsecase) RunReferenceSync(ctx context.Context) (*entity.IngestRunReport, error) {
	runCtx, run, err := u.prepare(ctx, entity.RunKindReference, entity.RunParams{}, ReferenceLockKey, false)
	if err != nil {
		return nil, err
	}
	return u.execute(runCtx, run, u.referenceSync)
}

// RunQuarterSync は (year, quarter) のスライスを上流のスナップショットで置き換えます。
// パラメータが範囲外の場合は domain.ErrInvalidArgument を返し、実行は開始されません。
func (u *IngestUsecase) RunQuarterSync(ctx context.Context, year, quarter int) (*entity.IngestRunReport, error) {
	if err := u.ValidateQuarter(year, quarter); err != nil {
		return nil, err
	}
	params := entity.RunParams{Year: year, Quarter: quarter}
	runCtx, run, err := u.prepare(ctx, entity.RunKindQuarterly, params, QuarterLockKey(year, quarter), false)
	if err != nil {
		return nil, err
	}
	return u.execute(runCtx, run, u.quarterSync)
}

// StartReferenceSync は参照データ同期をバックグラウンドで開始し、Pending 状態のレポートを返します。
// 実行は呼び出し元のコンテキストのキャンセルとは切り離され、CancelRun で中止します。
func (u *IngestUsecase) StartReferenceSync(ctx context.Context) (*entity.IngestRunReport, error) {
	runCtx, run, err := u.prepare(ctx, entity.RunKindReference, entity.RunParams{}, ReferenceLockKey, true)
	if err != nil {
		return nil, err
	}
	return u.launch(runCtx, run, u.referenceSync), nil
}

// StartQuarterSync は四半期同期をバックグラウンドで開始します。
func (u *IngestUsecase) StartQuarterSync(ctx context.Context, year, quarter int) (*entity.IngestRunReport, error) {
	if err := u.ValidateQuarter(year, quarter); err != nil {
		return nil, err
	}
	params := entity.RunParams{Year: year, Quarter: quarter}
	runCtx, run, err := u.prepare(ctx, entity.RunKindQuarterly, params, QuarterLockKey(year, quarter), true)
	if err != nil {
		return nil, err
	}
	return u.launch(runCtx, run, u.quarterSync), nil
}

// GetRun は実行中または保存済みのレポートを返します。
func (u *IngestUsecase) GetRun(ctx context.Context, id string) (*entity.IngestRunReport, error) {
	u.mu.Lock()
	if run, ok := u.live[id]; ok {
		snap := run.snapshot.Clone()
		u.mu.Unlock()
		return snap, nil
	}
	u.mu.Unlock()

	if u.runs == nil {
		return nil, domain.ErrRunNotFound
	}
	return u.runs.Find(ctx, id)
}

// CancelRun は実行中の実行にキャンセルを要求します。キャンセルは次の中断点で反映されます。
// 既に終了している実行に対しては何もしません。
func (u *IngestUsecase) CancelRun(ctx context.Context, id string) error {
	u.mu.Lock()
	run, ok := u.live[id]
	u.mu.Unlock()
	if ok {
		slog.Info("cancel requested", "run_id", id)
		run.cancel()
		return nil
	}
	if u.runs == nil {
		return domain.ErrRunNotFound
	}
	if _, err := u.runs.Find(ctx, id); err != nil {
		return err
	}
	return nil
}

// Shutdown は実行中のすべての実行（同期実行を含む）をキャンセルし、終了状態の保存まで待ちます。
// 以降の実行要求は domain.ErrCancelled で拒否されます。
func (u *IngestUsecase) Shutdown(ctx context.Context) error {
	u.mu.Lock()
	u.closed = true
	for _, run := range u.live {
		run.cancel()
	}
	u.mu.Unlock()

	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ValidateQuarter は四半期同期のパラメータを検証します。
// 年は1993年以降かつ今年以前、四半期は1〜4で、今年の場合は現在の四半期以前である必要があります。
func (u *IngestUsecase) ValidateQuarter(year, quarter int) error {
	now := u.now().In(u.loc)
	curYear, curQuarter := now.Year(), (int(now.Month())-1)/3+1
	switch {
	case quarter < 1 || quarter > 4:
		return fmt.Errorf("%w: quarter %d must be between 1 and 4", domain.ErrInvalidArgument, quarter)
	case year < MinQuarterYear:
		return fmt.Errorf("%w: year %d is before %d", domain.ErrInvalidArgument, year, MinQuarterYear)
	case year > curYear:
		return fmt.Errorf("%w: year %d is in the future", domain.ErrInvalidArgument, year)
	case year == curYear && quarter > curQuarter:
		return fmt.Errorf("%w: %dQ%d has not started yet", domain.ErrInvalidArgument, year, quarter)
	}
	return nil
}

// prepare はロックを取得し、Pending 状態の実行を登録します。
func (u *IngestUsecase) prepare(ctx context.Context, kind entity.RunKind, params entity.RunParams, lockKey string, detached bool) (context.Context, *activeRun, error) {
	release, err := u.locker.Acquire(ctx, lockKey)
	if err != nil {
		if errors.Is(err, domain.ErrRunConflict) {
			slog.Warn("ingest run rejected", "kind", kind, "lock", lockKey)
		}
		return nil, nil, err
	}

	parent := ctx
	if detached {
		parent = context.WithoutCancel(ctx)
	}
	runCtx, cancel := context.WithCancel(parent)

	report := entity.NewIngestRunReport(u.newID(), kind, params)
	run := &activeRun{report: report, snapshot: report.Clone(), cancel: cancel, release: release}

	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		cancel()
		release()
		return nil, nil, fmt.Errorf("%w: ingest is shutting down", domain.ErrCancelled)
	}
	u.live[report.ID] = run
	u.wg.Add(1)
	u.mu.Unlock()
	return runCtx, run, nil
}

func (u *IngestUsecase) launch(ctx context.Context, run *activeRun, body runBody) *entity.IngestRunReport {
	pending := run.report.Clone()
	go func() {
		_, _ = u.execute(ctx, run, body)
	}()
	return pending
}

// execute は実行を Running に進めて body を実行し、終了状態を記録します。
// prepare で登録された実行は必ず execute を1回通ります。
func (u *IngestUsecase) execute(ctx context.Context, run *activeRun, body runBody) (*entity.IngestRunReport, error) {
	report := run.report
	defer func() {
		run.cancel()
		run.release()
		u.mu.Lock()
		delete(u.live, report.ID)
		u.mu.Unlock()
		u.wg.Done()
	}()

	report.Start(u.now())
	slog.Info("ingest run started", "run_id", report.ID, "kind", report.Kind, "year", report.Params.Year, "quarter", report.Params.Quarter)
	u.publish(ctx, run)

	err := body(ctx, run)
	if errors.Is(err, domain.ErrCancelled) {
		report.Cancelled = true
	}
	report.Finish(u.now(), err)
	u.publish(ctx, run)

	elapsed := report.EndedAt.Sub(report.StartedAt)
	u.observer.RunFinished(report.Kind, report.Status, elapsed)
	if err != nil {
		slog.Error("ingest run aborted", "run_id", report.ID, "kind", report.Kind, "reason", domain.KindName(err), "error", err)
	} else {
		slog.Info("ingest run finished", "run_id", report.ID, "kind", report.Kind, "status", report.Status,
			"succeeded", report.Counts.Succeeded, "failed", report.Counts.Failed,
			"skipped_existing", report.Counts.SkippedExisting, "elapsed", elapsed)
	}
	return report.Clone(), err
}

// publish は進捗のスナップショットを更新し、レポートを保存します。保存の失敗は実行に影響しません。
func (u *IngestUsecase) publish(ctx context.Context, run *activeRun) {
	snap := run.report.Clone()
	u.mu.Lock()
	run.snapshot = snap
	u.mu.Unlock()

	if u.runs == nil {
		return
	}
	if err := u.runs.Save(context.WithoutCancel(ctx), snap); err != nil {
		slog.Warn("failed to save ingest run report", "run_id", snap.ID, "error", err)
	}
}

func (u *IngestUsecase) newFetcher() *Fetcher {
	return NewFetcher(u.source, u.cfg.Fetcher, pacer.New(u.newRand(), u.sleeper), u.observer)
}

// referenceSync は未登録の銘柄だけを上流のマスターリスト順に取得し、チャンク単位で追加します。
func (u *IngestUsecase) referenceSync(ctx context.Context, run *activeRun) error {
	report := run.report
	kind := report.Kind

	existing, err := u.store.ListExistingSymbols(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		return asStoreFailure(err)
	}

	fetcher := u.newFetcher()
	list, err := fetcher.FetchSymbolList(ctx)
	if err != nil {
		return err
	}
	symbols := normalizer.NormalizeSymbolList(list)
	slog.Info("master list loaded", "run_id", report.ID, "symbols", len(symbols), "existing", len(existing))

	writer := NewWriter(u.store, u.cfg.ChunkSize)
	batch := make([]entity.EquityReference, 0, u.cfg.ChunkSize)
	flush := func() error {
		results, err := writer.AppendReference(ctx, batch)
		for _, r := range results {
			if r.Err != nil {
				for _, row := range r.Rows {
					report.AddFailure(row.Symbol, domain.KindName(r.Err), r.Err.Error())
				}
				u.observer.RecordsProcessed(kind, OutcomeFailed, len(r.Rows))
				continue
			}
			report.Counts.Succeeded += len(r.Rows)
			u.observer.RecordsProcessed(kind, OutcomeSucceeded, len(r.Rows))
		}
		batch = batch[:0]
		u.publish(ctx, run)
		return err
	}

	for _, sym := range symbols {
		if _, ok := existing[sym.Symbol]; ok {
			report.Counts.SkippedExisting++
			u.observer.RecordsProcessed(kind, OutcomeSkipped, 1)
			continue
		}
		report.Counts.Attempted++

		raw, err := fetcher.FetchProfile(ctx, sym.Symbol)
		if err != nil {
			if errors.Is(err, domain.ErrCancelled) {
				return err
			}
			report.AddFailure(sym.Symbol, domain.KindName(err), err.Error())
			u.observer.RecordsProcessed(kind, OutcomeFailed, 1)
			continue
		}
		batch = append(batch, normalizer.NormalizeProfile(sym, raw, u.cfg.DataSource))

		if len(batch) >= u.cfg.ChunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if len(batch) > 0 {
		return flush()
	}
	return nil
}

// quarterSync は上流のスナップショットを取得し、単一トランザクションでスライスを削除してから挿入します。
// スナップショットの取得に失敗した場合、スライスには触れません。
func (u *IngestUsecase) quarterSync(ctx context.Context, run *activeRun) error {
	report := run.report
	year, quarter := report.Params.Year, report.Params.Quarter

	raw, err := u.newFetcher().FetchQuarterSnapshot(ctx, year, quarter)
	if err != nil {
		return err
	}
	rows := normalizer.NormalizeQuarterSnapshot(raw, year, quarter)
	report.Counts.Attempted = len(rows)

	writer := NewWriter(u.store, u.cfg.ChunkSize)
	txn, deleted, err := writer.ReplaceQuarterSliceBegin(ctx, year, quarter)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		rollback(txn)
		return cancelled(err)
	}
	if err := writer.AppendQuarter(ctx, txn, rows); err != nil {
		return err
	}

	report.Counts.Succeeded = len(rows)
	u.observer.RecordsProcessed(report.Kind, OutcomeSucceeded, len(rows))
	slog.Info("quarter slice replaced", "run_id", report.ID, "year", year, "quarter", quarter, "deleted", deleted, "inserted", len(rows))
	return nil
}
