package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultIdleTTL = 10 * time.Minute
	sweepEvery     = 512
)

// Config describes a per-sender token bucket. A zero RPS or Burst disables
// limiting.
type Config struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration
}

func (c Config) Enabled() bool {
	return c.RPS > 0 && c.Burst > 0
}

// MapLimiter applies one token bucket per node id and evicts buckets that
// have been idle for longer than the configured TTL.
type MapLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*entry
	hits  uint64
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New returns nil when cfg does not enable limiting; a nil limiter allows
// everything.
func New(cfg Config) *MapLimiter {
	if !cfg.Enabled() {
		return nil
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	return &MapLimiter{
		limit:   rate.Limit(cfg.RPS),
		burst:   cfg.Burst,
		idleTTL: cfg.IdleTTL,
		byKey:   make(map[string]*entry),
	}
}

// Allow reports whether src may send one more message at now. Messages with
// an empty sender are never limited.
func (l *MapLimiter) Allow(src string, now time.Time) bool {
	if l == nil {
		return true
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[src]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[src] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%sweepEvery == 0 {
		l.evictLocked(now)
	}
	return allowed
}

// Tracked returns how many senders currently hold a bucket.
func (l *MapLimiter) Tracked() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

func (l *MapLimiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, v := range l.byKey {
		if v.lastSeen.Before(cutoff) {
			delete(l.byKey, k)
		}
	}
}
