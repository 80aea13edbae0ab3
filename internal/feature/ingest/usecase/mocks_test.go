package usecase_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"astock_backend/internal/feature/ingest/domain"
	"astock_backend/internal/feature/ingest/domain/entity"
	"astock_backend/internal/feature/ingest/usecase"
)

// ErrUpstream はモックの上流エラーです。
var ErrUpstream = errors.New("upstream error")

// mockMarketSource は MarketSource のモック実装です。
type mockMarketSource struct {
	mu                     sync.Mutex
	ListAllSymbolsFunc     func(ctx context.Context) ([]entity.SymbolName, error)
	GetProfileFunc         func(ctx context.Context, symbol string) (entity.RawRecord, error)
	GetQuarterSnapshotFunc func(ctx context.Context, date string) ([]entity.RawRecord, error)
	ListAllSymbolsCalls    int
	GetProfileCalls        map[string]int
	SnapshotDates          []string
}

func (m *mockMarketSource) ListAllSymbols(ctx context.Context) ([]entity.SymbolName, error) {
	m.mu.Lock()
	m.ListAllSymbolsCalls++
	m.mu.Unlock()
	if m.ListAllSymbolsFunc != nil {
		return m.ListAllSymbolsFunc(ctx)
	}
	return nil, errors.New("ListAllSymbolsFunc is not implemented")
}

func (m *mockMarketSource) GetProfile(ctx context.Context, symbol string) (entity.RawRecord, error) {
	m.mu.Lock()
	if m.GetProfileCalls == nil {
		m.GetProfileCalls = make(map[string]int)
	}
	m.GetProfileCalls[symbol]++
	m.mu.Unlock()
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, symbol)
	}
	return entity.RawRecord{"所属行业": "测试"}, nil
}

func (m *mockMarketSource) GetQuarterSnapshot(ctx context.Context, date string) ([]entity.RawRecord, error) {
	m.mu.Lock()
	m.SnapshotDates = append(m.SnapshotDates, date)
	m.mu.Unlock()
	if m.GetQuarterSnapshotFunc != nil {
		return m.GetQuarterSnapshotFunc(ctx, date)
	}
	return nil, errors.New("GetQuarterSnapshotFunc is not implemented")
}

func (m *mockMarketSource) profileCalls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetProfileCalls[symbol]
}

type quarterKey struct {
	year, quarter int
}

// memStore はトランザクションを模したインメモリの Store です。
type memStore struct {
	mu        sync.Mutex
	refs      []entity.EquityReference
	quarters  map[quarterKey][]entity.QuarterlyIncomeStatement
	chunkSize []int

	// InsertReferenceChunkFunc が設定されている場合、挿入前に呼び出されます。エラーを返すとチャンクは書き込まれません。
	InsertReferenceChunkFunc func(rows []entity.EquityReference) error
	InsertQuarterRowsErr     error
	ListExistingErr          error
	BeginCalls               int
}

func newMemStore() *memStore {
	return &memStore{quarters: make(map[quarterKey][]entity.QuarterlyIncomeStatement)}
}

func (s *memStore) ListExistingSymbols(ctx context.Context) (map[string]struct{}, error) {
	if s.ListExistingErr != nil {
		return nil, s.ListExistingErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.refs))
	for _, r := range s.refs {
		out[r.Symbol] = struct{}{}
	}
	return out, nil
}

func (s *memStore) InsertReferenceChunk(ctx context.Context, rows []entity.EquityReference) error {
	if s.InsertReferenceChunkFunc != nil {
		if err := s.InsertReferenceChunkFunc(rows); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkSize = append(s.chunkSize, len(rows))
	s.refs = append(s.refs, rows...)
	return nil
}

func (s *memStore) BeginQuarterReplace(ctx context.Context, year, quarter int) (usecase.QuarterTxn, error) {
	s.mu.Lock()
	s.BeginCalls++
	s.mu.Unlock()
	return &memTxn{store: s}, nil
}

func (s *memStore) symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.refs))
	for _, r := range s.refs {
		out = append(out, r.Symbol)
	}
	return out
}

func (s *memStore) slice(year, quarter int) []entity.QuarterlyIncomeStatement {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := append([]entity.QuarterlyIncomeStatement(nil), s.quarters[quarterKey{year, quarter}]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows
}

func (s *memStore) seedQuarter(year, quarter int, symbols ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := quarterKey{year, quarter}
	for _, sym := range symbols {
		s.quarters[k] = append(s.quarters[k], entity.QuarterlyIncomeStatement{Symbol: sym, Year: year, Quarter: quarter})
	}
}

// memTxn は削除と挿入をステージし、Commit でまとめて反映します。
type memTxn struct {
	store    *memStore
	deleted  *quarterKey
	inserted []entity.QuarterlyIncomeStatement
	done     bool
	Commits  int
	Rolled   bool
}

func (t *memTxn) DeleteQuarter(ctx context.Context, year, quarter int) (int64, error) {
	k := quarterKey{year, quarter}
	t.deleted = &k
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return int64(len(t.store.quarters[k])), nil
}

func (t *memTxn) InsertQuarterRows(ctx context.Context, rows []entity.QuarterlyIncomeStatement) error {
	if t.store.InsertQuarterRowsErr != nil {
		return t.store.InsertQuarterRowsErr
	}
	t.inserted = append(t.inserted, rows...)
	return nil
}

func (t *memTxn) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	t.Commits++
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.deleted != nil {
		delete(t.store.quarters, *t.deleted)
	}
	for _, r := range t.inserted {
		k := quarterKey{r.Year, r.Quarter}
		t.store.quarters[k] = append(t.store.quarters[k], r)
	}
	return nil
}

func (t *memTxn) Rollback() error {
	t.done = true
	t.Rolled = true
	return nil
}

// memRuns はインメモリの RunRepository です。
type memRuns struct {
	mu      sync.Mutex
	reports map[string]*entity.IngestRunReport
	saves   int
	SaveErr error
}

func newMemRuns() *memRuns {
	return &memRuns{reports: make(map[string]*entity.IngestRunReport)}
}

func (r *memRuns) Save(ctx context.Context, report *entity.IngestRunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.reports[report.ID] = report.Clone()
	return nil
}

func (r *memRuns) Find(ctx context.Context, id string) (*entity.IngestRunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return rep.Clone(), nil
}

// mockLocker はキー単位の排他ロックです。
type mockLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMockLocker() *mockLocker { return &mockLocker{held: make(map[string]bool)} }

func (l *mockLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrRunConflict
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}

func (l *mockLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key]
}

// recordingSleeper は実際には眠らずに待機時間を記録します。
type recordingSleeper struct {
	mu     sync.Mutex
	Sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Sleeps = append(s.Sleeps, d)
	s.mu.Unlock()
	return ctx.Err()
}

// recordingObserver は Observer の呼び出しを集計します。
type recordingObserver struct {
	mu       sync.Mutex
	records  map[string]int
	attempts map[bool]int
	finished []entity.RunStatus
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{records: make(map[string]int), attempts: make(map[bool]int)}
}

func (o *recordingObserver) RecordsProcessed(kind entity.RunKind, outcome string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records[string(kind)+"/"+outcome] += n
}

func (o *recordingObserver) FetchAttempt(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts[ok]++
}

func (o *recordingObserver) RunFinished(kind entity.RunKind, status entity.RunStatus, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, status)
}
