// Package poster publishes posts and replies to the social platform.
//
// Two implementations satisfy Poster: Bluesky, which talks XRPC to a PDS,
// and Simulated, which fabricates identifiers so the job lifecycle and the
// dashboard work without credentials. The choice is made once at startup by
// FromConfig.
package poster

import (
	"context"
	"time"

	"github.com/teranos/tcgbot/errors"
)

// Poster posts new items and replies. Failures are reported in Result,
// never returned as errors, so callers can run it from background workers.
type Poster interface {
	PostItem(ctx context.Context, content string) Result
	PostReply(ctx context.Context, content, targetID string) Result
	// Simulated reports whether results are fabricated
	Simulated() bool
	// Handle is the account handle used for permalinks
	Handle() string
}

// Result is the outcome of one post or reply
type Result struct {
	Success     bool      `json:"success"`
	ItemID      string    `json:"tweet_id,omitempty"`
	URL         string    `json:"tweet_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	RateLimited bool      `json:"rate_limited,omitempty"`
	Simulated   bool      `json:"simulated"`
	PostedAt    time.Time `json:"posted_at"`
}

// Err returns the failure as an error, or nil on success
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	if r.RateLimited {
		return errors.Wrap(errors.ErrRateLimited, r.Error)
	}
	if r.Error == "" {
		return errors.New("post failed")
	}
	return errors.New(r.Error)
}

// failure builds a failed Result from err
func failure(err error, simulated bool) Result {
	return Result{
		Success:     false,
		Error:       err.Error(),
		RateLimited: errors.IsRateLimitedError(err),
		Simulated:   simulated,
		PostedAt:    time.Now(),
	}
}
