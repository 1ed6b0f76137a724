package ratelimit

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Limiter is a per-service-key sliding-window rate limiter.
//
// All methods are safe for unsynchronized concurrent use. Each key's
// window state carries its own mutex; a check on one key never blocks a
// check on another.
type Limiter struct {
	cfg Config

	// mu guards get-or-create on keys; keyState mutation happens under
	// the per-key lock.
	mu   sync.Mutex
	keys *lru.Cache[string, *keyState]
}

// keyState holds the admission timestamps for one key, ascending.
//
// A single slice serves both windows: the day window is a superset of
// the minute window, so entries are pruned at the day cutoff and the
// minute count is found by binary search.
type keyState struct {
	mu      sync.Mutex
	entries []time.Time
}

// NewLimiter creates a limiter with the given configuration.
// Zero-valued config fields are replaced with defaults (see Config).
func NewLimiter(cfg Config) *Limiter {
	cfg = cfg.withDefaults()

	keys, err := lru.New[string, *keyState](cfg.MaxKeys)
	if err != nil {
		// lru.New only fails for a non-positive size, which
		// withDefaults rules out.
		panic(err)
	}

	return &Limiter{cfg: cfg, keys: keys}
}

// Check decides whether one call for key is admitted right now.
//
// An allowed decision consumes one slot in both windows; a denied
// decision consumes nothing and carries the delay after which a retry
// can succeed. Expired entries for the key are pruned as a side effect.
func (l *Limiter) Check(key string) *Decision {
	ks := l.state(key)
	ceiling := l.cfg.ceilingFor(key)
	now := l.cfg.Clock.Now()

	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.prune(now)

	dayCount := len(ks.entries)
	minuteCount := ks.countSince(now.Add(-MinuteWindow))

	var retryAfter time.Duration
	if ceiling.PerMinute <= 0 || minuteCount >= ceiling.PerMinute {
		retryAfter = maxDuration(retryAfter, ks.slotFreesIn(now, MinuteWindow, minuteCount, ceiling.PerMinute))
	}
	if ceiling.PerDay <= 0 || dayCount >= ceiling.PerDay {
		retryAfter = maxDuration(retryAfter, ks.slotFreesIn(now, DayWindow, dayCount, ceiling.PerDay))
	}

	if retryAfter > 0 {
		l.cfg.Metrics.RecordDenied(key)
		return newDeniedDecision(key, ceiling, retryAfter)
	}

	ks.entries = append(ks.entries, now)
	l.cfg.Metrics.RecordAllowed(key)
	return newAllowedDecision(key, ceiling, minuteCount+1, dayCount+1)
}

// Utilization holds the fraction of each window's ceiling currently
// consumed by a key. 1.0 means the ceiling is fully consumed.
type Utilization struct {
	Minute float64 `json:"minute"`
	Day    float64 `json:"day"`
}

// Utilization reports the current window utilization for key without
// consuming quota.
func (l *Limiter) Utilization(key string) Utilization {
	ks := l.state(key)
	ceiling := l.cfg.ceilingFor(key)
	now := l.cfg.Clock.Now()

	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.prune(now)

	var u Utilization
	if ceiling.PerMinute > 0 {
		u.Minute = float64(ks.countSince(now.Add(-MinuteWindow))) / float64(ceiling.PerMinute)
	}
	if ceiling.PerDay > 0 {
		u.Day = float64(len(ks.entries)) / float64(ceiling.PerDay)
	}
	return u
}

// Keys returns the currently tracked service keys in sorted order.
func (l *Limiter) Keys() []string {
	keys := l.keys.Keys()
	sort.Strings(keys)
	return keys
}

// Cleanup prunes expired entries for every tracked key and drops keys
// with no remaining admissions. Checks already prune lazily; Cleanup
// exists for periodic housekeeping of idle keys.
func (l *Limiter) Cleanup() int {
	now := l.cfg.Clock.Now()
	removed := 0

	for _, key := range l.keys.Keys() {
		ks, ok := l.keys.Peek(key)
		if !ok {
			continue
		}
		ks.mu.Lock()
		ks.prune(now)
		empty := len(ks.entries) == 0
		ks.mu.Unlock()

		if empty {
			l.keys.Remove(key)
			removed++
		}
	}

	if removed > 0 {
		l.cfg.Logger.Debug("rate limiter cleanup removed idle keys",
			slog.Int("removed", removed),
			slog.Int("remaining", l.keys.Len()))
	}
	return removed
}

// state returns the keyState for key, creating it if needed.
func (l *Limiter) state(key string) *keyState {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ks, ok := l.keys.Get(key); ok {
		return ks
	}
	ks := &keyState{}
	if evicted := l.keys.Add(key, ks); evicted {
		l.cfg.Metrics.RecordEviction(key)
	}
	return ks
}

// prune drops entries older than the day window. Callers hold ks.mu.
func (ks *keyState) prune(now time.Time) {
	cutoff := now.Add(-DayWindow)
	idx := sort.Search(len(ks.entries), func(i int) bool {
		return ks.entries[i].After(cutoff)
	})
	if idx > 0 {
		ks.entries = append(ks.entries[:0], ks.entries[idx:]...)
	}
}

// countSince counts entries strictly after cutoff. Callers hold ks.mu.
func (ks *keyState) countSince(cutoff time.Time) int {
	idx := sort.Search(len(ks.entries), func(i int) bool {
		return ks.entries[i].After(cutoff)
	})
	return len(ks.entries) - idx
}

// slotFreesIn returns how long until one admission slot frees in a
// window whose ceiling is currently reached. Callers hold ks.mu.
func (ks *keyState) slotFreesIn(now time.Time, window time.Duration, count, ceiling int) time.Duration {
	if ceiling <= 0 || count == 0 {
		// Nothing will ever free up (zero ceiling) or nothing to age
		// out; the best estimate is one full window.
		return window
	}
	// Admissions never exceed the ceiling, so the window clears one
	// slot as soon as its oldest entry ages out.
	oldest := ks.entries[len(ks.entries)-count]
	d := oldest.Add(window).Sub(now)
	if d <= 0 {
		d = time.Nanosecond
	}
	return d
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
