package poster

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// SimulatedHandle is used for permalinks when no account handle is configured
const SimulatedHandle = "tcgbot.simulated"

// Simulated fabricates successful posts. It is selected when credentials are
// missing or login fails.
type Simulated struct {
	handle string
	seq    atomic.Int64
	now    func() time.Time
}

// NewSimulated creates a simulated poster. An empty handle uses SimulatedHandle.
func NewSimulated(handle string) *Simulated {
	if handle == "" {
		handle = SimulatedHandle
	}
	return &Simulated{handle: handle, now: time.Now}
}

// PostItem returns a fabricated sim_tweet_<unix>_<n> identifier
func (s *Simulated) PostItem(ctx context.Context, content string) Result {
	return s.result(ctx, "sim_tweet")
}

// PostReply returns a fabricated sim_reply_<unix>_<n> identifier
func (s *Simulated) PostReply(ctx context.Context, content, targetID string) Result {
	return s.result(ctx, "sim_reply")
}

func (s *Simulated) result(ctx context.Context, prefix string) Result {
	now := s.now()
	if err := ctx.Err(); err != nil {
		return failure(err, true)
	}
	id := fmt.Sprintf("%s_%d_%d", prefix, now.Unix(), s.seq.Add(1))
	return Result{
		Success:   true,
		ItemID:    id,
		URL:       Permalink(s.handle, id),
		Simulated: true,
		PostedAt:  now,
	}
}

// Simulated always reports true
func (s *Simulated) Simulated() bool { return true }

// Handle returns the handle used for fabricated permalinks
func (s *Simulated) Handle() string { return s.handle }
