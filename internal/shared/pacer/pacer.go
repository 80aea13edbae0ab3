// Package pacer は外部APIへのリクエスト間隔を制御する待機ユーティリティを提供します。
package pacer

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Sleeper はコンテキストを考慮して指定時間待機するインターフェースです。
// テストでは実際に眠らない実装に差し替えます。
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper は time.Timer を使う本番用の Sleeper です。
type TimerSleeper struct{}

// Sleep は d だけ待機します。待機中にコンテキストがキャンセルされた場合は ctx.Err() を返します。
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Window は一様乱数で待機時間を選ぶ区間 [Min, Max] です。
type Window struct {
	Min time.Duration
	Max time.Duration
}

// Pacer はウィンドウ内のランダムな時間だけ待機します。
// 乱数源はシード可能で、1回のインジェストの間だけ単一ゴルーチンから使われます。
type Pacer struct {
	rng     *rand.Rand
	sleeper Sleeper
}

// New は新しい Pacer を生成します。rng が nil の場合は時刻ベースのシードを使います。
func New(rng *rand.Rand, sleeper Sleeper) *Pacer {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>1|1))
	}
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	return &Pacer{rng: rng, sleeper: sleeper}
}

// Pick はウィンドウ内の待機時間を一様に選びます。
func (p *Pacer) Pick(w Window) time.Duration {
	lo, hi := w.Min, w.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(p.rng.Int64N(int64(hi-lo)+1))
}

// Wait はウィンドウ内のランダムな時間だけ待機します。
func (p *Pacer) Wait(ctx context.Context, w Window) error {
	d := p.Pick(w)
	slog.Debug("pacing upstream call", "sleep", d)
	return p.sleeper.Sleep(ctx, d)
}
