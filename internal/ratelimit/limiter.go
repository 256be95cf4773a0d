// Package ratelimit implements fixed-window admission control for chat turns.
//
// Two independent counters gate every request: a per-session window and a
// single global window. Both are stored in Redis so counting is atomic
// across instances. If the counting store is unavailable the limiter fails
// open: availability of the support channel outranks strict quota
// enforcement.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brightcart/support-assistant/pkg/logger"
	"github.com/brightcart/support-assistant/pkg/metrics"
)

const (
	sessionKeyPrefix = "rate_limit:session:"
	globalKey        = "rate_limit:global"
)

// CounterStore is the slice of the key-value store the limiter needs.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Window reports the outcome of one fixed-window check.
type Window struct {
	Remaining int
	ResetAt   time.Time
}

// Decision is the result of an admission check.
type Decision struct {
	Allowed bool
	Session Window
	Global  Window
	Reason  string
}

// Limiter performs dual-window admission control.
type Limiter struct {
	store        CounterStore
	sessionLimit int
	globalLimit  int
	window       time.Duration
	logger       *logger.Logger
	now          func() time.Time
}

// New creates a limiter over the given counter store.
func New(store CounterStore, sessionLimit, globalLimit int, window time.Duration, log *logger.Logger) *Limiter {
	return &Limiter{
		store:        store,
		sessionLimit: sessionLimit,
		globalLimit:  globalLimit,
		window:       window,
		logger:       log,
		now:          time.Now,
	}
}

// Check runs both window checks for one inbound turn. Both counters are
// always incremented, even when the request will be denied on the other
// window: a turn denied on the session check still consumes one unit of the
// global budget. That asymmetry is load-bearing for compatibility and must
// not be "fixed".
func (l *Limiter) Check(ctx context.Context, sessionID string) Decision {
	var session, global Window
	var sessionOK, globalOK bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		session, sessionOK = l.checkWindow(gctx, sessionKeyPrefix+sessionID, l.sessionLimit)
		return nil
	})
	g.Go(func() error {
		global, globalOK = l.checkWindow(gctx, globalKey, l.globalLimit)
		return nil
	})
	_ = g.Wait()

	metrics.RateLimitDecisions.WithLabelValues("session", outcome(sessionOK)).Inc()
	metrics.RateLimitDecisions.WithLabelValues("global", outcome(globalOK)).Inc()

	d := Decision{Allowed: true, Session: session, Global: global}
	switch {
	case !sessionOK:
		d.Allowed = false
		d.Reason = "Session rate limit exceeded"
		l.logger.Warn("session rate limit exceeded", zap.String("session_id", sessionID))
	case !globalOK:
		d.Allowed = false
		d.Reason = "Global rate limit exceeded"
		l.logger.Warn("global rate limit exceeded")
	}
	return d
}

// checkWindow increments the counter at key and evaluates it against limit.
// The first increment in a window arms a TTL equal to the window length, so
// the counter self-expires and the next window starts exactly where the
// previous one ended.
func (l *Limiter) checkWindow(ctx context.Context, key string, limit int) (Window, bool) {
	fullWindow := Window{Remaining: limit, ResetAt: l.now().Add(l.window)}

	current, err := l.store.Incr(ctx, key)
	if err != nil {
		l.logger.Error("rate limit increment failed, failing open",
			zap.String("key", key), zap.Error(err))
		return fullWindow, true
	}

	if current == 1 {
		if err := l.store.Expire(ctx, key, l.window); err != nil {
			l.logger.Error("rate limit expire failed, failing open",
				zap.String("key", key), zap.Error(err))
			return fullWindow, true
		}
	}

	ttl, err := l.store.TTL(ctx, key)
	if err != nil || ttl < 0 {
		ttl = l.window
	}

	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	w := Window{
		Remaining: remaining,
		ResetAt:   l.now().Add(ttl),
	}
	return w, current <= int64(limit)
}

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
