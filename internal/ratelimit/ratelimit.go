// Package ratelimit caps how many analyses one client may request per
// calendar day. Limiters are injected into the HTTP layer; each backend
// resets at local midnight so no entry outlives its day.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time

	key string
	day string
}

type DailyLimiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	// Release gives back the slot taken by an allowed decision. It is a
	// no-op once the decision's day has passed.
	Release(ctx context.Context, d Decision) error
}

// Unlimited allows every request.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

func (Unlimited) Release(context.Context, Decision) error {
	return nil
}

// LoadLocation resolves a time zone name, falling back to UTC when empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", name, err)
	}
	return loc, nil
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// MemoryDailyLimiter counts per key in process memory. When the calendar day
// in loc changes, every entry is dropped at once.
type MemoryDailyLimiter struct {
	mu     sync.Mutex
	limit  int
	loc    *time.Location
	now    func() time.Time
	day    string
	counts map[string]int
}

func NewMemoryDailyLimiter(limit int, loc *time.Location) *MemoryDailyLimiter {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryDailyLimiter{
		limit:  limit,
		loc:    loc,
		now:    time.Now,
		counts: make(map[string]int),
	}
}

func (l *MemoryDailyLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().In(l.loc)
	if day := now.Format(dayLayout); day != l.day {
		l.day = day
		l.counts = make(map[string]int)
	}

	d := Decision{Limit: l.limit, ResetAt: nextMidnight(now), key: key, day: l.day}
	used := l.counts[key]
	if used >= l.limit {
		return d, nil
	}

	used++
	l.counts[key] = used
	d.Allowed = true
	d.Remaining = l.limit - used
	return d, nil
}

func (l *MemoryDailyLimiter) Release(_ context.Context, d Decision) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !d.Allowed || d.day != l.day {
		return nil
	}
	switch used := l.counts[d.key]; {
	case used > 1:
		l.counts[d.key] = used - 1
	case used == 1:
		delete(l.counts, d.key)
	}
	return nil
}

// Len returns the number of tracked keys.
func (l *MemoryDailyLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counts)
}
