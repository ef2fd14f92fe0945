package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter enforces a maximum number of calls within a rolling window.
// When the limit is exceeded a cooldown period starts and subsequent
// callers wait it out instead of being rejected: callers experience added
// latency, never an error. It is safe for concurrent use.
type Limiter struct {
	mu            sync.Mutex
	limit         int
	window        time.Duration
	cooldown      time.Duration
	calls         []time.Time
	cooldownUntil time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewLimiter creates a rolling-window limiter allowing limit calls per
// window, with the given cooldown applied once the limit is hit.
// A limit <= 0 disables limiting entirely.
func NewLimiter(limit int, window, cooldown time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	if cooldown <= 0 {
		cooldown = window
	}
	return &Limiter{
		limit:    limit,
		window:   window,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Wait blocks until the caller is allowed to proceed or the context is
// canceled. The call is recorded in the window once admitted.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		delay := l.reserve()
		if delay <= 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Delay reports how long a caller arriving now would have to wait, without
// admitting it.
func (l *Limiter) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limit <= 0 {
		return 0
	}
	now := l.now()
	if now.Before(l.cooldownUntil) {
		return l.cooldownUntil.Sub(now)
	}
	l.prune(now)
	if len(l.calls) < l.limit {
		return 0
	}
	return l.cooldown
}

// reserve admits the call if allowed, returning 0. Otherwise it starts the
// cooldown (if not already running) and returns the remaining delay.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limit <= 0 {
		return 0
	}

	now := l.now()

	if now.Before(l.cooldownUntil) {
		return l.cooldownUntil.Sub(now)
	}

	l.prune(now)

	if len(l.calls) < l.limit {
		l.calls = append(l.calls, now)
		return 0
	}

	l.cooldownUntil = now.Add(l.cooldown)
	return l.cooldown
}

// prune drops calls that fell out of the rolling window. Must be called
// with the lock held.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.calls[:0]
	for _, c := range l.calls {
		if c.After(cutoff) {
			kept = append(kept, c)
		}
	}
	l.calls = kept
}

// Pacer spaces out successive operations at a fixed interval with optional
// jitter. Unlike Limiter it has no notion of a budget; it is used to pace
// crawl fetches so they resemble human browsing. Safe for concurrent use.
type Pacer struct {
	ticker   *time.Ticker
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
	ch       <-chan time.Time
}

// NewPacer creates a pacer emitting at the given requests per second with
// the given jitter factor (clamped to [0,1]). If rps <= 0 the pacer does
// not block.
func NewPacer(rps float64, jitter float64) *Pacer {
	if rps <= 0 {
		return &Pacer{jitter: jitter}
	}
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	interval := time.Duration(float64(time.Second) / rps)
	ticker := time.NewTicker(interval)

	return &Pacer{
		ticker:   ticker,
		jitter:   jitter,
		interval: interval,
		ch:       ticker.C,
	}
}

// Wait blocks until the next slot, or until the context is canceled.
// Positive jitter extends the wait by up to jitter*interval; negative
// jitter outcomes run immediately since the ticker already enforces the
// minimum spacing.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.ch == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ch:
		if p.jitter > 0 {
			jitterFactor := (rand.Float64() * 2) - 1.0 // -1.0 to 1.0
			jitterDuration := time.Duration(float64(p.interval) * p.jitter * jitterFactor)
			if jitterDuration > 0 {
				select {
				case <-time.After(jitterDuration):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return nil
}

// Stop releases the pacer's ticker.
func (p *Pacer) Stop() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}
