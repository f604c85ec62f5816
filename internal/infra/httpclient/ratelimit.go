package httpclient

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces request budgets over fixed per-second, per-minute and
// per-hour windows. A limit of zero or less disables that window.
type RateLimiter struct {
	mu sync.Mutex

	perSecond, perMinute, perHour int
	secCount, minCount, hrCount   int
	secReset, minReset, hrReset   time.Time

	now func() time.Time
}

func NewRateLimiter(perSecond, perMinute, perHour int) *RateLimiter {
	r := &RateLimiter{perSecond: perSecond, perMinute: perMinute, perHour: perHour, now: time.Now}
	now := r.now()
	r.secReset = now.Add(time.Second)
	r.minReset = now.Add(time.Minute)
	r.hrReset = now.Add(time.Hour)
	return r
}

// Wait blocks until a request fits every window or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delay, ok := r.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// reserve takes a slot when available, otherwise reports how long to wait
// before the earliest blocking window resets.
func (r *RateLimiter) reserve() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.resetIfNeeded(now)

	var wait time.Duration
	block := func(count, limit int, reset time.Time) {
		if limit > 0 && count >= limit {
			if d := reset.Sub(now); wait == 0 || d < wait {
				wait = d
			}
		}
	}
	block(r.secCount, r.perSecond, r.secReset)
	block(r.minCount, r.perMinute, r.minReset)
	block(r.hrCount, r.perHour, r.hrReset)

	if wait > 0 {
		// Poll at least every 100ms so cancellation stays responsive.
		return min(wait, 100*time.Millisecond), false
	}
	r.secCount++
	r.minCount++
	r.hrCount++
	return 0, true
}

// Must be called with lock held
func (r *RateLimiter) resetIfNeeded(now time.Time) {
	if !now.Before(r.secReset) {
		r.secCount = 0
		r.secReset = now.Add(time.Second)
	}
	if !now.Before(r.minReset) {
		r.minCount = 0
		r.minReset = now.Add(time.Minute)
	}
	if !now.Before(r.hrReset) {
		r.hrCount = 0
		r.hrReset = now.Add(time.Hour)
	}
}
