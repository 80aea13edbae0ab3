package usecase

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"astock_backend/internal/shared/pacer"
)

// MinQuarterYear は四半期同期で指定できる最も古い年です。
const MinQuarterYear = 1993

// DefaultDataSource は参照データ行に記録するデータソースタグの既定値です。
const DefaultDataSource = "akshare"

// Config はインジェスト実行の設定です。
type Config struct {
	Fetcher    FetcherConfig
	ChunkSize  int
	DataSource string
}

// DefaultConfig は既定の設定を返します。
func DefaultConfig() Config {
	return Config{
		Fetcher:    DefaultFetcherConfig(),
		ChunkSize:  DefaultChunkSize,
		DataSource: DefaultDataSource,
	}
}

// Option は IngestUsecase の依存を差し替えます。主にテストで使います。
type Option func(*IngestUsecase)

// WithClock は現在時刻の取得元を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(u *IngestUsecase) { u.now = now }
}

// WithSleeper は待機処理を差し替えます。
func WithSleeper(s pacer.Sleeper) Option {
	return func(u *IngestUsecase) { u.sleeper = s }
}

// WithRandSeed は実行ごとの待機時間の乱数を固定シードにします。
func WithRandSeed(seed uint64) Option {
	return func(u *IngestUsecase) {
		u.newRand = func() *rand.Rand { return rand.New(rand.NewPCG(seed, seed)) }
	}
}

// WithObserver は実行イベントの転送先を設定します。
func WithObserver(o Observer) Option {
	return func(u *IngestUsecase) { u.observer = o }
}

// WithIDGenerator は実行IDの生成方法を差し替えます。
func WithIDGenerator(gen func() string) Option {
	return func(u *IngestUsecase) { u.newID = gen }
}

// WithLocation は四半期の検証に使うタイムゾーンを差し替えます。
func WithLocation(loc *time.Location) Option {
	return func(u *IngestUsecase) { u.loc = loc }
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

func defaultID() string { return uuid.NewString() }
