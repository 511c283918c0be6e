package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/EternisAI/certpass/internal/metrics"
)

const (
	DefaultPurgeProbability = 0.01
	DefaultStoreTimeout     = 2 * time.Second
)

// Record is one observed, allowed action occurrence.
type Record struct {
	Identifier string
	Action     string
	SourceIP   string
	Timestamp  time.Time
}

// Window summarises the records of one identifier+action inside a window.
type Window struct {
	Count  int
	Oldest time.Time
}

// Store persists rate-limit records. Implementations do not need to make
// Window+Record atomic.
type Store interface {
	Window(ctx context.Context, identifier, action string, since time.Time) (Window, error)
	Record(ctx context.Context, rec Record) error
	PurgeBefore(ctx context.Context, action string, before time.Time) (int64, error)
}

type Attempt struct {
	Identifier  string
	Action      string
	SourceIP    string
	MaxRequests int
	Window      time.Duration
}

type Decision struct {
	Limited    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a sliding-window throttle. Any store failure lets the request
// through.
type Limiter struct {
	store            Store
	now              func() time.Time
	random           func() float64
	purgeProbability float64
	timeout          time.Duration
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func WithPurgeProbability(p float64) Option {
	return func(l *Limiter) {
		if p >= 0 && p <= 1 {
			l.purgeProbability = p
		}
	}
}

func WithRandom(random func() float64) Option {
	return func(l *Limiter) {
		if random != nil {
			l.random = random
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func NewLimiter(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:            store,
		now:              time.Now,
		random:           rand.Float64,
		purgeProbability: DefaultPurgeProbability,
		timeout:          DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsRateLimited reports whether identifier has used up max actions within
// window. Allowed attempts are recorded; limited ones are not.
func (l *Limiter) IsRateLimited(ctx context.Context, identifier, action string, maxRequests int, window time.Duration) bool {
	return l.Allow(ctx, Attempt{
		Identifier:  identifier,
		Action:      action,
		MaxRequests: maxRequests,
		Window:      window,
	}).Limited
}

func (l *Limiter) Allow(ctx context.Context, a Attempt) Decision {
	now := l.now()
	l.maybePurge(a.Action, now.Add(-2*a.Window))

	w, err := l.window(ctx, a, now)
	if err != nil {
		slog.Warn("Rate limit store unavailable, allowing request",
			"action", a.Action, "error", err)
		metrics.RateLimitDecisions.WithLabelValues(a.Action, "fail_open").Inc()
		return Decision{Remaining: a.MaxRequests}
	}

	if w.Count >= a.MaxRequests {
		metrics.RateLimitDecisions.WithLabelValues(a.Action, "limited").Inc()
		return Decision{
			Limited:    true,
			RetryAfter: retryAfter(w.Oldest, a.Window, now),
		}
	}

	rctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.store.Record(rctx, Record{
		Identifier: a.Identifier,
		Action:     a.Action,
		SourceIP:   a.SourceIP,
		Timestamp:  now,
	}); err != nil {
		slog.Warn("Failed to record rate limit attempt", "action", a.Action, "error", err)
		metrics.RateLimitDecisions.WithLabelValues(a.Action, "fail_open").Inc()
		return Decision{Remaining: a.MaxRequests - w.Count}
	}

	metrics.RateLimitDecisions.WithLabelValues(a.Action, "allowed").Inc()
	return Decision{Remaining: a.MaxRequests - w.Count - 1}
}

// Remaining reports the unused quota without recording an attempt.
func (l *Limiter) Remaining(ctx context.Context, a Attempt) int {
	w, err := l.window(ctx, a, l.now())
	if err != nil {
		slog.Warn("Rate limit store unavailable, reporting full quota", "action", a.Action, "error", err)
		return a.MaxRequests
	}
	if w.Count >= a.MaxRequests {
		return 0
	}
	return a.MaxRequests - w.Count
}

func (l *Limiter) window(ctx context.Context, a Attempt, now time.Time) (Window, error) {
	wctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.store.Window(wctx, a.Identifier, a.Action, now.Add(-a.Window))
}

func (l *Limiter) maybePurge(action string, before time.Time) {
	if l.purgeProbability <= 0 || l.random() >= l.purgeProbability {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		removed, err := l.store.PurgeBefore(ctx, action, before)
		if err != nil {
			slog.Warn("Failed to purge old rate limit records", "action", action, "error", err)
			return
		}
		if removed > 0 {
			slog.Debug("Purged old rate limit records", "action", action, "removed", removed)
		}
	}()
}

func retryAfter(oldest time.Time, window time.Duration, now time.Time) time.Duration {
	if oldest.IsZero() {
		return window
	}
	d := oldest.Add(window).Sub(now)
	secs := math.Ceil(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}
