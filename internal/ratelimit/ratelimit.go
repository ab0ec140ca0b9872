// Package ratelimit bounds crafting throughput. Daily quotas are fixed
// windows persisted through the store and reset at midnight UTC; per-minute
// quotas are in-memory token buckets. Checks never consume quota; the
// caller increments explicitly once it commits to the attempt, so a failed
// generation still counts.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/epochforge/epochforge/internal/storage"
)

// Kind names one quota window. Daily kinds carry the tier so limits differ
// per account level.
type Kind string

const (
	KindDailyStandard Kind = "daily_standard"
	KindDailyPro      Kind = "daily_pro"
	KindDailyAdmin    Kind = "daily_admin"
	KindDailyGlobal   Kind = "daily_global"
	KindMinuteUser    Kind = "minute_user"
	KindMinuteGlobal  Kind = "minute_global"
)

// GlobalScope is the sentinel scope for the service-wide quotas.
const GlobalScope = "global"

// Config holds the quota sizes.
type Config struct {
	DailyStandard int
	DailyPro      int
	DailyAdmin    int
	DailyGlobal   int
	MinuteUser    int
	MinuteGlobal  int
}

// DefaultConfig returns the production quota sizes.
func DefaultConfig() Config {
	return Config{
		DailyStandard: 20,
		DailyPro:      500,
		DailyAdmin:    1000,
		DailyGlobal:   4000,
		MinuteUser:    4,
		MinuteGlobal:  50,
	}
}

func (c Config) limitFor(kind Kind) (int, error) {
	switch kind {
	case KindDailyStandard:
		return c.DailyStandard, nil
	case KindDailyPro:
		return c.DailyPro, nil
	case KindDailyAdmin:
		return c.DailyAdmin, nil
	case KindDailyGlobal:
		return c.DailyGlobal, nil
	case KindMinuteUser:
		return c.MinuteUser, nil
	case KindMinuteGlobal:
		return c.MinuteGlobal, nil
	}
	return 0, fmt.Errorf("unknown rate limit kind %q", kind)
}

// DailyKindFor maps an account profile to its daily quota kind.
func DailyKindFor(profile storage.PlayerProfile) Kind {
	switch {
	case profile.FeeExempt:
		return KindDailyAdmin
	case profile.Pro:
		return KindDailyPro
	default:
		return KindDailyStandard
	}
}

// Limiter implements the allow/increment quota contract.
type Limiter struct {
	store storage.RateLimitStore
	cfg   Config
	now   func() time.Time

	mu     sync.Mutex
	minute map[string]*rate.Limiter
}

// New builds a limiter over the persisted window store.
func New(store storage.RateLimitStore, cfg Config) *Limiter {
	return &Limiter{
		store:  store,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		minute: make(map[string]*rate.Limiter),
	}
}

func isDaily(kind Kind) bool {
	switch kind {
	case KindDailyStandard, KindDailyPro, KindDailyAdmin, KindDailyGlobal:
		return true
	}
	return false
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Allow reports whether one more attempt fits the quota, and how much of
// the quota remains. It never consumes.
func (l *Limiter) Allow(ctx context.Context, scope string, kind Kind) (bool, int, error) {
	limit, err := l.cfg.limitFor(kind)
	if err != nil {
		return false, 0, err
	}
	if isDaily(kind) {
		count, err := l.dailyCount(ctx, scope, kind)
		if err != nil {
			return false, 0, err
		}
		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		return int(count) < limit, remaining, nil
	}

	tokens := int(l.minuteLimiter(scope, kind, limit).TokensAt(l.now()))
	if tokens < 0 {
		tokens = 0
	}
	return tokens >= 1, tokens, nil
}

// Increment consumes one unit of quota.
func (l *Limiter) Increment(ctx context.Context, scope string, kind Kind) error {
	limit, err := l.cfg.limitFor(kind)
	if err != nil {
		return err
	}
	if isDaily(kind) {
		count, err := l.dailyCount(ctx, scope, kind)
		if err != nil {
			return err
		}
		window := storage.RateWindow{
			Scope:       scope,
			Kind:        string(kind),
			WindowStart: midnightUTC(l.now()),
			Count:       count + 1,
		}
		if err := l.store.UpsertWindow(ctx, window); err != nil {
			return fmt.Errorf("persist rate window: %w", err)
		}
		return nil
	}

	l.minuteLimiter(scope, kind, limit).AllowN(l.now(), 1)
	return nil
}

// dailyCount reads the persisted window, treating a missing or stale (past
// midnight) window as zero.
func (l *Limiter) dailyCount(ctx context.Context, scope string, kind Kind) (int64, error) {
	window, err := l.store.GetWindow(ctx, scope, string(kind))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read rate window: %w", err)
	}
	if window.WindowStart.Before(midnightUTC(l.now())) {
		return 0, nil
	}
	return window.Count, nil
}

func (l *Limiter) minuteLimiter(scope string, kind Kind, limit int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := scope + "/" + string(kind)
	lim, ok := l.minute[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), limit)
		l.minute[key] = lim
	}
	return lim
}
