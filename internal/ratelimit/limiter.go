package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dfe0990ngc/pcds-student-portal/pkg/logger"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/metrics"
)

// Rule describes how many attempts an action permits within its window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Result reports the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Store persists the attempt timestamps for a bucket. Implementations must be
// safe for concurrent use. Load returns an empty slice for unknown keys.
type Store interface {
	Load(ctx context.Context, key string) ([]time.Time, error)
	Save(ctx context.Context, key string, attempts []time.Time, ttl time.Duration) error
	Clear(ctx context.Context) (int, error)
}

// Limiter applies sliding-window rate limiting on top of a Store. Each check
// prunes attempts older than the window before counting, so a bucket drains
// gradually rather than resetting all at once.
type Limiter struct {
	store Store
	now   func() time.Time
	log   *zap.Logger
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter builds a Limiter over the given store.
func NewLimiter(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		now:   time.Now,
		log:   logger.WithModule("ratelimit"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records an attempt for action/identifier and reports whether it is
// within the rule. Store failures allow the request through so that a cache
// outage never locks students out.
func (l *Limiter) Allow(ctx context.Context, action, identifier string, rule Rule) Result {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Result{Allowed: true, Remaining: rule.Limit}
	}

	key := action + "|" + identifier
	now := l.now()
	cutoff := now.Add(-rule.Window)

	attempts, err := l.store.Load(ctx, key)
	if err != nil {
		l.log.Warn("rate limit store load failed, allowing request",
			zap.String("action", action), zap.Error(err))
		return Result{Allowed: true, Remaining: rule.Limit}
	}

	pruned := attempts[:0]
	for _, at := range attempts {
		if at.After(cutoff) {
			pruned = append(pruned, at)
		}
	}

	if len(pruned) >= rule.Limit {
		metrics.RateLimited.WithLabelValues(action).Inc()
		oldest := pruned[0]
		for _, at := range pruned[1:] {
			if at.Before(oldest) {
				oldest = at
			}
		}
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: oldest.Add(rule.Window).Sub(now),
		}
	}

	pruned = append(pruned, now)
	if err := l.store.Save(ctx, key, pruned, rule.Window); err != nil {
		l.log.Warn("rate limit store save failed",
			zap.String("action", action), zap.Error(err))
	}

	return Result{Allowed: true, Remaining: rule.Limit - len(pruned)}
}

// Clear drops every bucket and reports how many were removed.
func (l *Limiter) Clear(ctx context.Context) (int, error) {
	return l.store.Clear(ctx)
}
