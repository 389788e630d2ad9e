// Package ratelimit implements a calendar-aligned fixed window quota on top
// of Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Store is the subset of the Redis client the limiter needs.
type Store interface {
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
	HIncrBy(ctx context.Context, key, field string, incr int64, ttl time.Duration) error
}

// Result is the outcome of one Limit call.
type Result struct {
	Success   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Options configure a FixedWindow.
type Options struct {
	Prefix    string
	Limit     int
	Window    time.Duration
	Analytics bool
}

// FixedWindow counts requests per identifier in windows aligned to the unix
// epoch, so every identifier's window resets at the same instant.
type FixedWindow struct {
	store Store
	opts  Options
	now   func() time.Time
}

// NewFixedWindow creates a limiter. Limit and Window must be positive.
func NewFixedWindow(store Store, opts Options) *FixedWindow {
	if opts.Prefix == "" {
		opts.Prefix = "blinkshot"
	}
	return &FixedWindow{store: store, opts: opts, now: time.Now}
}

// Limit records one request for identifier and reports whether it fits in
// the current window.
func (f *FixedWindow) Limit(ctx context.Context, identifier string) (Result, error) {
	now := f.now()
	windowMs := f.opts.Window.Milliseconds()
	bucket := now.UnixMilli() / windowMs
	reset := time.UnixMilli((bucket + 1) * windowMs)

	key := fmt.Sprintf("%s:%s:%d", f.opts.Prefix, identifier, bucket)
	count, err := f.store.IncrWindow(ctx, key, f.opts.Window)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: %w", err)
	}

	res := Result{
		Success:   count <= int64(f.opts.Limit),
		Limit:     f.opts.Limit,
		Remaining: max(0, f.opts.Limit-int(count)),
		Reset:     reset,
	}

	if f.opts.Analytics {
		f.record(ctx, identifier, now, res.Success)
	}

	return res, nil
}

// record bumps the per-day analytics hash. Failures are logged and dropped.
func (f *FixedWindow) record(ctx context.Context, identifier string, now time.Time, success bool) {
	field := identifier + ":success"
	if !success {
		field = identifier + ":blocked"
	}
	key := fmt.Sprintf("%s:analytics:%s", f.opts.Prefix, now.UTC().Format("2006-01-02"))
	if err := f.store.HIncrBy(ctx, key, field, 1, 90*24*time.Hour); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("ratelimit analytics write failed")
	}
}
