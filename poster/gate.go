package poster

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/teranos/tcgbot/errors"
)

// Gate spaces posts from every job and endpoint at least one interval apart.
// A nil *Gate lets everything through.
type Gate struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// GateStats feeds the posting queue endpoint
type GateStats struct {
	LastPostTime       *time.Time `json:"last_post_time"`
	CanPostNow         bool       `json:"can_post_now"`
	MinIntervalSeconds int        `json:"min_interval_seconds"`
	NextAvailable      *time.Time `json:"next_available_post_time"`
}

// NewGate allows one post per interval with no burst. interval <= 0 disables
// pacing.
func NewGate(interval time.Duration) *Gate {
	g := &Gate{now: time.Now}
	g.limiter = rate.NewLimiter(limitFor(interval), 1)
	g.interval = interval
	return g
}

func limitFor(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

// Wait blocks until a post may go out or ctx ends
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "pacing gate wait interrupted")
	}
	g.mark()
	return nil
}

// Allow reserves a slot without waiting; false means the caller should
// report the post as rate limited
func (g *Gate) Allow() bool {
	if g == nil {
		return true
	}
	if !g.limiter.AllowN(g.now(), 1) {
		return false
	}
	g.mark()
	return true
}

func (g *Gate) mark() {
	g.mu.Lock()
	g.last = g.now()
	g.mu.Unlock()
}

// SetInterval changes the spacing, used on config reload
func (g *Gate) SetInterval(interval time.Duration) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.interval = interval
	g.mu.Unlock()
	g.limiter.SetLimitAt(g.now(), limitFor(interval))
}

// Interval returns the current spacing
func (g *Gate) Interval() time.Duration {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.interval
}

// Stats reports the last post time and whether a post could go out now
func (g *Gate) Stats() GateStats {
	if g == nil {
		return GateStats{CanPostNow: true}
	}

	now := g.now()
	g.mu.Lock()
	last := g.last
	interval := g.interval
	g.mu.Unlock()

	stats := GateStats{
		CanPostNow:         interval <= 0 || g.limiter.TokensAt(now) >= 1,
		MinIntervalSeconds: int(interval / time.Second),
	}
	if !last.IsZero() {
		stats.LastPostTime = &last
		if !stats.CanPostNow {
			next := last.Add(interval)
			stats.NextAvailable = &next
		}
	}
	return stats
}
