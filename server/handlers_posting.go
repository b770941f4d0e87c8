package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/teranos/tcgbot/activity"
	"github.com/teranos/tcgbot/jobs"
	"github.com/teranos/tcgbot/logger"
	"github.com/teranos/tcgbot/poster"
)

// postedMessage describes a successful direct post
func postedMessage(noun string, simulated bool) string {
	if simulated {
		return fmt.Sprintf("%s posted successfully (simulated - Bluesky poster not available)", noun)
	}
	return fmt.Sprintf("%s posted successfully to Bluesky", noun)
}

// rateLimited answers a post the pacing gate refused
func (s *Server) rateLimited(w http.ResponseWriter) {
	stats := s.manager.Gate().Stats()
	s.respond(w, http.StatusOK, envelope{
		"success":                  false,
		"error":                    fmt.Sprintf("Too Many Requests: posts must be at least %d seconds apart", stats.MinIntervalSeconds),
		"rate_limited":             true,
		"simulated":                s.manager.Poster().Simulated(),
		"next_available_post_time": stats.NextAvailable,
	})
}

// postFailed answers a post the platform rejected
func (s *Server) postFailed(w http.ResponseWriter, res poster.Result) {
	s.respond(w, http.StatusOK, envelope{
		"success":      false,
		"error":        res.Error,
		"rate_limited": res.RateLimited,
		"simulated":    res.Simulated,
	})
}

// HandlePostItem publishes one post immediately
func (s *Server) HandlePostItem(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.manager.Gate().Allow() {
		s.rateLimited(w)
		return
	}

	_, res := s.manager.Publish(r.Context(), activity.KindPost, jobs.Item{Content: req.Content, Topics: req.Topics})
	if !res.Success {
		s.postFailed(w, res)
		return
	}
	s.ok(w, envelope{
		"tweet_id":  res.ItemID,
		"message":   postedMessage("Tweet", res.Simulated),
		"tweet_url": res.URL,
		"content":   req.Content,
		"posted_at": res.PostedAt.Format(time.RFC3339),
		"simulated": res.Simulated,
	})
}

// HandlePostReply publishes one reply immediately and records its target
func (s *Server) HandlePostReply(w http.ResponseWriter, r *http.Request) {
	var req replyPostRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.manager.Gate().Allow() {
		s.rateLimited(w)
		return
	}

	_, res := s.manager.Publish(r.Context(), activity.KindReply, jobs.Item{
		Content:       req.Content,
		TweetID:       req.ReplyToID,
		TweetAuthor:   req.OriginalAuthor,
		OriginalTweet: req.OriginalContent,
	})
	if !res.Success {
		s.postFailed(w, res)
		return
	}
	s.ok(w, envelope{
		"tweet_id":          res.ItemID,
		"message":           postedMessage("Reply", res.Simulated),
		"tweet_url":         res.URL,
		"content":           req.Content,
		"reply_to_tweet_id": req.ReplyToID,
		"posted_at":         res.PostedAt.Format(time.RFC3339),
		"simulated":         res.Simulated,
	})
}

// HandlePostScheduled posts a batch in order within the request, waiting
// between items. Items without content are reported and skipped.
func (s *Server) HandlePostScheduled(w http.ResponseWriter, r *http.Request) {
	var req scheduledRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	log := s.logger.With("batch_size", len(req.Items))
	results := make([]envelope, 0, len(req.Items))
	succeeded := 0

	for i, item := range req.Items {
		if item.Content == "" {
			results = append(results, envelope{
				"success":       false,
				"error":         "Missing content",
				"original_data": item,
			})
			continue
		}

		if err := s.manager.Gate().Wait(ctx); err != nil {
			results = append(results, envelope{
				"success":        false,
				"error":          err.Error(),
				"content":        item.Content,
				"scheduled_time": item.ScheduledTime,
			})
			break
		}

		var topics []string
		if item.Topic != "" {
			topics = []string{item.Topic}
		}
		_, res := s.manager.Publish(ctx, activity.KindPost, jobs.Item{Content: item.Content, Topics: topics})
		if res.Success {
			succeeded++
			results = append(results, envelope{
				"success":        true,
				"tweet_id":       res.ItemID,
				"tweet_url":      res.URL,
				"content":        item.Content,
				"posted_at":      res.PostedAt.Format(time.RFC3339),
				"scheduled_time": item.ScheduledTime,
				"simulated":      res.Simulated,
			})
		} else {
			log.Warnw("Scheduled item failed", logger.FieldItemIndex, i, logger.FieldError, res.Error)
			results = append(results, envelope{
				"success":        false,
				"error":          res.Error,
				"rate_limited":   res.RateLimited,
				"content":        item.Content,
				"scheduled_time": item.ScheduledTime,
			})
		}

		if i < len(req.Items)-1 {
			if err := s.wait(ctx, s.manager.Interval()); err != nil {
				log.Infow("Scheduled batch interrupted", logger.FieldItemIndex, i, logger.FieldError, err)
				break
			}
		}
	}

	// items after an interrupted wait have no result and are not failures
	s.ok(w, envelope{
		"total_processed":   len(req.Items),
		"successful_posts":  succeeded,
		"failed_posts":      len(results) - succeeded,
		"skipped_posts":     len(req.Items) - len(results),
		"results":           results,
		"twitter_available": !s.manager.Poster().Simulated(),
		"simulated":         s.manager.Poster().Simulated(),
	})
}

// HandlePostingQueue reports the pacing gate state
func (s *Server) HandlePostingQueue(w http.ResponseWriter, r *http.Request) {
	stats := s.manager.Gate().Stats()
	s.ok(w, envelope{
		"queue":                    []interface{}{},
		"stats":                    stats,
		"can_post_now":             stats.CanPostNow,
		"next_available_post_time": stats.NextAvailable,
	})
}
