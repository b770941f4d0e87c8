package server

import (
	"context"
	"net/http"
	"time"

	"github.com/teranos/tcgbot/activity"
	"github.com/teranos/tcgbot/content"
	"github.com/teranos/tcgbot/feed"
	"github.com/teranos/tcgbot/jobs"
	"github.com/teranos/tcgbot/logger"
)

// HandlePosts returns the static sample post the dashboard renders on
// first load
func (s *Server) HandlePosts(w http.ResponseWriter, r *http.Request) {
	posts := []envelope{{
		"id":         "post_1",
		"content":    "Test post about Pokemon TCG!",
		"timestamp":  timestamp(),
		"platform":   "twitter",
		"engagement": activity.Engagement{Likes: 5, Retweets: 1, Replies: 2},
		"status":     "posted",
	}}
	s.ok(w, envelope{"posts": posts, "total": len(posts)})
}

// HandleTopics lists the simple topic catalogue
func (s *Server) HandleTopics(w http.ResponseWriter, r *http.Request) {
	topics := content.Topics()
	s.ok(w, envelope{"topics": topics, "total": len(topics)})
}

// HandleContentTopics lists the generation topics with examples
func (s *Server) HandleContentTopics(w http.ResponseWriter, r *http.Request) {
	topics := content.ContentTopics()
	s.ok(w, envelope{"topics": topics, "total": len(topics)})
}

// HandleRecentPosts returns the activity log, most recent first
func (s *Server) HandleRecentPosts(w http.ResponseWriter, r *http.Request) {
	posts := s.manager.Activity().All()
	s.ok(w, envelope{"posts": posts, "count": len(posts)})
}

// HandleGenerateContent writes a post. Fallback content still succeeds.
func (s *Server) HandleGenerateContent(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}
	gen := s.generator.Generate(r.Context(), req.Topic, req.Style, req.hashtags())
	s.ok(w, envelope{"content": gen})
}

// HandleGenerateContentEnhanced adds length checks and posting readiness
func (s *Server) HandleGenerateContentEnhanced(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}
	gen := s.generator.Generate(r.Context(), req.Topic, req.Style, req.hashtags())
	s.ok(w, envelope{
		"content":           content.Enhance(gen),
		"posting_available": !s.manager.Poster().Simulated(),
	})
}

// HandleGenerateAndPost writes a post and optionally publishes it
func (s *Server) HandleGenerateAndPost(w http.ResponseWriter, r *http.Request) {
	var req generateAndPostRequest
	if !s.decode(w, r, &req) {
		return
	}
	hashtags := req.IncludeHashtags == nil || *req.IncludeHashtags

	gen := s.generator.Generate(r.Context(), req.Topic, "", hashtags)
	topic := req.Topic
	if topic == "" {
		topic = content.DefaultTopic
	}
	full := gen.Full()

	body := envelope{
		"generated_content":     gen.Content,
		"content_with_hashtags": full,
		"hashtags":              gen.Hashtags,
		"topic":                 topic,
		"content_type":          req.ContentType,
		"posted":                false,
	}
	if !req.PostImmediately {
		body["message"] = "Content generated successfully (not posted)"
		s.ok(w, body)
		return
	}

	if !s.manager.Gate().Allow() {
		body["message"] = "Content generated but posting failed"
		body["post_error"] = "Too Many Requests: posting gate closed"
		body["post_result"] = envelope{"success": false, "rate_limited": true}
		s.ok(w, body)
		return
	}

	_, res := s.manager.Publish(r.Context(), activity.KindPost, jobs.Item{Content: full, Topics: []string{topic}})
	body["post_result"] = res
	body["posted"] = res.Success
	body["simulated"] = res.Simulated
	if res.Success {
		body["tweet_id"] = res.ItemID
		body["tweet_url"] = res.URL
		body["message"] = "Content generated and posted successfully"
	} else {
		body["message"] = "Content generated but posting failed"
		body["post_error"] = res.Error
	}
	s.ok(w, body)
}

// HandleGenerateReply drafts a reply. success mirrors whether the LLM wrote
// it; the fallback text is returned either way.
func (s *Server) HandleGenerateReply(w http.ResponseWriter, r *http.Request) {
	var req generateReplyRequest
	if !s.decode(w, r, &req) {
		return
	}
	reply := s.generator.Reply(r.Context(), req.TweetText, req.TweetAuthor, req.ConversationHistory)

	var errMsg interface{}
	if reply.Error != "" {
		errMsg = reply.Error
	}
	s.respond(w, http.StatusOK, envelope{
		"success":              reply.Success,
		"reply":                reply.Text,
		"original_tweet":       req.TweetText,
		"author":               req.TweetAuthor,
		"reply_generator_used": s.generator.Active(),
		"llm_used":             reply.LLMUsed,
		"error":                errMsg,
	})
}

// fetchTimeout bounds a reply-candidate fetch across every source
const fetchTimeout = 30 * time.Second

// HandleFetchTweets returns reply candidates from the feed chain
func (s *Server) HandleFetchTweets(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.GetFeedMaxItems()

	ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
	defer cancel()

	batch, err := s.feed.Fetch(ctx, limit)
	if err != nil {
		s.logger.Errorw("Failed to fetch reply candidates", logger.FieldError, err)
		s.respond(w, http.StatusOK, envelope{
			"success": false,
			"error":   err.Error(),
			"tweets":  []feed.Tweet{},
		})
		return
	}
	if batch.Tweets == nil {
		batch.Tweets = []feed.Tweet{}
	}
	s.ok(w, envelope{
		"tweets": batch.Tweets,
		"count":  len(batch.Tweets),
		"source": batch.Source,
	})
}
