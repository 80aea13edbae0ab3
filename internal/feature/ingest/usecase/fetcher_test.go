package usecase_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astock_backend/internal/feature/ingest/domain"
	"astock_backend/internal/feature/ingest/domain/entity"
	"astock_backend/internal/feature/ingest/usecase"
	"astock_backend/internal/shared/pacer"
)

func newTestFetcher(source usecase.MarketSource, cfg usecase.FetcherConfig, sleeper pacer.Sleeper, obs usecase.Observer) *usecase.Fetcher {
	p := pacer.New(rand.New(rand.NewPCG(1, 2)), sleeper)
	return usecase.NewFetcher(source, cfg, p, obs)
}

func TestFetcher_FetchProfile_RetryThenSuccess(t *testing.T) {
	calls := 0
	source := &mockMarketSource{
		GetProfileFunc: func(ctx context.Context, symbol string) (entity.RawRecord, error) {
			calls++
			if calls == 1 {
				return nil, ErrUpstream
			}
			return entity.RawRecord{"公司名称": "贵州茅台酒股份有限公司"}, nil
		},
	}
	sleeper := &recordingSleeper{}
	obs := newRecordingObserver()
	f := newTestFetcher(source, usecase.DefaultFetcherConfig(), sleeper, obs)

	rec, err := f.FetchProfile(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, "贵州茅台酒股份有限公司", rec["公司名称"])
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, obs.attempts[true])
	assert.Equal(t, 1, obs.attempts[false])
	require.Len(t, sleeper.Sleeps, 1, "only the retry wait before the second attempt")
	assert.GreaterOrEqual(t, sleeper.Sleeps[0], time.Second)
}

func TestFetcher_FetchProfile_Exhausted(t *testing.T) {
	source := &mockMarketSource{
		GetProfileFunc: func(ctx context.Context, symbol string) (entity.RawRecord, error) {
			return nil, ErrUpstream
		},
	}
	f := newTestFetcher(source, usecase.DefaultFetcherConfig(), &recordingSleeper{}, nil)

	_, err := f.FetchProfile(context.Background(), "000001")
	var na *domain.NotAvailableError
	require.ErrorAs(t, err, &na)
	assert.Equal(t, "000001", na.Symbol)
	assert.ErrorIs(t, err, domain.ErrExternalUnavailable)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, 3, source.profileCalls("000001"))
}

func TestFetcher_FetchProfile_TimeoutCountsAsAttempt(t *testing.T) {
	source := &mockMarketSource{
		GetProfileFunc: func(ctx context.Context, symbol string) (entity.RawRecord, error) {
			return nil, context.DeadlineExceeded
		},
	}
	cfg := usecase.DefaultFetcherConfig()
	cfg.MaxAttempts = 2
	f := newTestFetcher(source, cfg, &recordingSleeper{}, nil)

	_, err := f.FetchProfile(context.Background(), "600519")
	assert.ErrorIs(t, err, domain.ErrExternalUnavailable)
	assert.NotErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, 2, source.profileCalls("600519"))
}

func TestFetcher_CallTimeoutHasFloor(t *testing.T) {
	var deadline time.Time
	source := &mockMarketSource{
		GetProfileFunc: func(ctx context.Context, symbol string) (entity.RawRecord, error) {
			deadline, _ = ctx.Deadline()
			return entity.RawRecord{}, nil
		},
	}
	cfg := usecase.DefaultFetcherConfig()
	cfg.CallTimeout = time.Second
	f := newTestFetcher(source, cfg, &recordingSleeper{}, nil)

	start := time.Now()
	_, err := f.FetchProfile(context.Background(), "600519")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deadline.Sub(start), 4900*time.Millisecond)
}

func TestFetcher_PacesBetweenCalls(t *testing.T) {
	source := &mockMarketSource{}
	sleeper := &recordingSleeper{}
	f := newTestFetcher(source, usecase.DefaultFetcherConfig(), sleeper, nil)

	for _, s := range []string{"600519", "000001", "430047"} {
		_, err := f.FetchProfile(context.Background(), s)
		require.NoError(t, err)
	}
	require.Len(t, sleeper.Sleeps, 2)
	for _, d := range sleeper.Sleeps {
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestFetcher_CancelDuringRetryWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := &mockMarketSource{
		GetProfileFunc: func(_ context.Context, symbol string) (entity.RawRecord, error) {
			cancel()
			return nil, ErrUpstream
		},
	}
	f := newTestFetcher(source, usecase.DefaultFetcherConfig(), &recordingSleeper{}, nil)

	_, err := f.FetchProfile(ctx, "600519")
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, 1, source.profileCalls("600519"))
}

func TestFetcher_FetchQuarterSnapshot(t *testing.T) {
	t.Run("single call with encoded date", func(t *testing.T) {
		source := &mockMarketSource{
			GetQuarterSnapshotFunc: func(ctx context.Context, date string) ([]entity.RawRecord, error) {
				return []entity.RawRecord{{"股票代码": "600519"}}, nil
			},
		}
		f := newTestFetcher(source, usecase.DefaultFetcherConfig(), &recordingSleeper{}, nil)

		rows, err := f.FetchQuarterSnapshot(context.Background(), 2023, 4)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		assert.Equal(t, []string{"20231231"}, source.SnapshotDates)
	})

	t.Run("failure is not retried", func(t *testing.T) {
		source := &mockMarketSource{
			GetQuarterSnapshotFunc: func(ctx context.Context, date string) ([]entity.RawRecord, error) {
				return nil, errors.New("502 bad gateway")
			},
		}
		f := newTestFetcher(source, usecase.DefaultFetcherConfig(), &recordingSleeper{}, nil)

		_, err := f.FetchQuarterSnapshot(context.Background(), 2024, 1)
		assert.ErrorIs(t, err, domain.ErrExternalSnapshotFailed)
		assert.Len(t, source.SnapshotDates, 1)
	})

	t.Run("invalid quarter", func(t *testing.T) {
		f := newTestFetcher(&mockMarketSource{}, usecase.DefaultFetcherConfig(), &recordingSleeper{}, nil)
		_, err := f.FetchQuarterSnapshot(context.Background(), 2024, 7)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}
