package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tcgbot/activity"
	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/feed"
	"github.com/teranos/tcgbot/jobs"
	"github.com/teranos/tcgbot/poster"
)

func TestCreatePostingJob(t *testing.T) {
	s := newTestServer(t)

	code, body := call(t, s, http.MethodPost, "/api/bot-job/create-posting-job",
		`{"name":"Weekend drops","settings":{"approvedContent":["Pack opening tonight!",{"content":"Deck tech thread","topics":["deck_building"]}]}}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Posting job 'Weekend drops' created successfully", body["message"])
	assert.Equal(t, "posting", body["job_type"])
	assert.EqualValues(t, 2, body["content_count"])
	assert.True(t, strings.HasPrefix(body["job_id"].(string), "posting_job_"))

	job, err := s.manager.Get(body["job_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusStopped, job.Status)
	require.Len(t, job.Items, 2)
	assert.Equal(t, []string{"deck_building"}, job.Items[1].Topics)
}

func TestCreatePostingJob_Defaults(t *testing.T) {
	s := newTestServer(t)

	_, body := call(t, s, http.MethodPost, "/api/bot-job/create-posting-job", "")
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Untitled Job", body["job_name"])
	assert.EqualValues(t, 0, body["content_count"])
}

func TestCreatePostingJob_BadSettings(t *testing.T) {
	s := newTestServer(t)

	code, body := call(t, s, http.MethodPost, "/api/bot-job/create-posting-job",
		`{"settings":{"approvedContent":"not a list"}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "approvedContent must be a list")

	code, body = call(t, s, http.MethodPost, "/api/bot-job/create-posting-job", `{"type":"broadcast"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "unknown job type")

	code, body = call(t, s, http.MethodPost, "/api/bot-job/create-posting-job", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "Invalid request body")
}

func TestCreateReplyJob(t *testing.T) {
	s := newTestServer(t)

	_, body := call(t, s, http.MethodPost, "/api/bot-job/create-reply-job",
		`{"settings":{"approvedContent":[{"content":"Great pull!","tweetId":"tweet_1","tweetAuthor":"PokemonFan123"}]}}`)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Untitled Reply Job", body["job_name"])
	assert.Equal(t, "replying", body["job_type"])
	assert.EqualValues(t, 10, body["max_replies_per_hour"])
	assert.True(t, strings.HasPrefix(body["job_id"].(string), "reply_job_"))

	settings := body["settings"].(map[string]interface{})
	assert.EqualValues(t, 10, settings["maxRepliesPerHour"])

	code, body := call(t, s, http.MethodPost, "/api/bot-job/create-reply-job", `{"maxRepliesPerHour":0}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
}

func TestJobLifecycle(t *testing.T) {
	s := newTestServer(t)

	_, err := s.manager.Create("j1", jobs.Spec{
		Kind:  jobs.KindPosting,
		Name:  "Morning",
		Items: []jobs.Item{{Content: "First"}, {Content: "Second"}},
	})
	require.NoError(t, err)

	_, body := call(t, s, http.MethodGet, "/api/bot-status", "")
	assert.Equal(t, false, body["running"])
	assert.Nil(t, body["uptime"])

	code, body := call(t, s, http.MethodPost, "/api/bot-job/j1/start", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Job j1 started successfully", body["message"])
	assert.Equal(t, "running", body["status"])

	job := waitStopped(t, s, "j1")
	assert.Equal(t, 2, job.Stats.PostsToday)

	_, body = call(t, s, http.MethodGet, "/api/bot-status", "")
	stats := body["stats"].(map[string]interface{})
	assert.EqualValues(t, 2, stats["postsToday"])
	assert.EqualValues(t, 100, stats["successRate"])

	_, body = call(t, s, http.MethodGet, "/api/recent-posts", "")
	assert.EqualValues(t, 2, body["count"])
	posts := body["posts"].([]interface{})
	assert.Equal(t, "Second", posts[0].(map[string]interface{})["content"])
	assert.Equal(t, "j1", posts[0].(map[string]interface{})["job_id"])

	_, body = call(t, s, http.MethodGet, "/api/bot-jobs", "")
	assert.EqualValues(t, 1, body["count"])

	_, body = call(t, s, http.MethodGet, "/api/bot-job/j1", "")
	assert.Equal(t, "Morning", body["job"].(map[string]interface{})["name"])
}

func TestJobControl_NotFound(t *testing.T) {
	s := newTestServer(t)

	code, body := call(t, s, http.MethodPost, "/api/bot-job/nope/start", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Job nope not found or already running", body["error"])

	code, body = call(t, s, http.MethodPost, "/api/bot-job/nope/stop", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Job nope not found", body["error"])

	code, body = call(t, s, http.MethodPost, "/api/bot-job/nope/pause", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Job nope not found", body["error"])

	code, _ = call(t, s, http.MethodGet, "/api/bot-job/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPauseStoppedJobConflicts(t *testing.T) {
	s := newTestServer(t)
	_, err := s.manager.Create("j1", jobs.Spec{Kind: jobs.KindPosting})
	require.NoError(t, err)

	code, body := call(t, s, http.MethodPost, "/api/bot-job/j1/pause", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "is not running")
}

func TestRenameJob(t *testing.T) {
	s := newTestServer(t)
	_, err := s.manager.Create("j1", jobs.Spec{Kind: jobs.KindPosting, Name: "Old"})
	require.NoError(t, err)

	code, body := call(t, s, http.MethodPost, "/api/bot-job/j1/rename", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing new name", body["error"])

	code, body = call(t, s, http.MethodPost, "/api/bot-job/j1/rename", `{"name":" New name "}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "New name", body["new_name"])
	assert.Equal(t, "Job j1 renamed to 'New name' successfully", body["message"])

	code, _ = call(t, s, http.MethodPost, "/api/bot-job/nope/rename", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPostItem(t *testing.T) {
	s := newTestServer(t)

	code, body := call(t, s, http.MethodPost, "/api/post-to-twitter", `{"content":"  "}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing tweet content", body["error"])

	code, body = call(t, s, http.MethodPost, "/api/post-to-twitter", `{"content":"Hello trainers","topics":["community"]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["simulated"])
	assert.Equal(t, "Tweet posted successfully (simulated - Bluesky poster not available)", body["message"])
	assert.True(t, strings.HasPrefix(body["tweet_id"].(string), "sim_tweet_"))
	assert.Contains(t, body["tweet_url"], "bot.test")

	items := s.manager.Activity().All()
	require.Len(t, items, 1)
	assert.Equal(t, activity.KindPost, items[0].Kind)
	assert.Equal(t, []string{"community"}, items[0].Topics)
	assert.Empty(t, items[0].JobID)
}

func TestPostItem_RateLimited(t *testing.T) {
	s := newTestServer(t, withGate(poster.NewGate(time.Hour)))

	_, body := call(t, s, http.MethodPost, "/api/post-to-twitter", `{"content":"first"}`)
	require.Equal(t, true, body["success"])

	code, body := call(t, s, http.MethodPost, "/api/post-to-twitter", `{"content":"second"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, true, body["rate_limited"])
	assert.Equal(t, "Too Many Requests: posts must be at least 3600 seconds apart", body["error"])
	assert.NotNil(t, body["next_available_post_time"])
	assert.Equal(t, 1, s.manager.Activity().Len())

	_, body = call(t, s, http.MethodGet, "/api/posting-queue", "")
	assert.Equal(t, false, body["can_post_now"])
	assert.Empty(t, body["queue"])
}

func TestPostReply(t *testing.T) {
	s := newTestServer(t)

	code, body := call(t, s, http.MethodPost, "/api/post-reply-with-tracking", `{"content":"Nice pull!"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing reply_to_tweet_id", body["error"])

	code, body = call(t, s, http.MethodPost, "/api/post-reply-with-tracking", `{"reply_to_tweet_id":"tweet_1"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing reply content", body["error"])

	code, body = call(t, s, http.MethodPost, "/api/post-reply-with-tracking", `{
		"reply_content": "Congrats on the Charizard!",
		"reply_to_tweet_id": "tweet_1",
		"original_tweet_author": "PokemonFan123",
		"original_tweet_content": "Pulled a Charizard ex!"
	}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Reply posted successfully (simulated - Bluesky poster not available)", body["message"])
	assert.Equal(t, "tweet_1", body["reply_to_tweet_id"])
	assert.Equal(t, "Congrats on the Charizard!", body["content"])

	items := s.manager.Activity().All()
	require.Len(t, items, 1)
	assert.Equal(t, activity.KindReply, items[0].Kind)
	require.NotNil(t, items[0].RepliedTo)
	assert.Equal(t, "tweet_1", items[0].RepliedTo.TweetID)
	assert.Equal(t, "PokemonFan123", items[0].RepliedTo.Author)
}

func TestPostScheduled(t *testing.T) {
	rec := &waitRecorder{}
	s := newTestServer(t, withWait(rec.wait))

	_, body := call(t, s, http.MethodPost, "/api/post-scheduled-content", `{"content_items":[
		{"content":"One","scheduled_time":"09:00","topic":"collecting"},
		{"content":"Two"},
		{"content":"Three"}
	]}`)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 3, body["total_processed"])
	assert.EqualValues(t, 3, body["successful_posts"])
	assert.EqualValues(t, 0, body["failed_posts"])
	assert.Equal(t, false, body["twitter_available"])
	assert.Len(t, body["results"], 3)

	assert.Equal(t, 2, rec.count(), "waits between items, never after the last")
	assert.Equal(t, time.Millisecond, rec.waits[0])

	items := s.manager.Activity().All()
	require.Len(t, items, 3)
	assert.Equal(t, "Three", items[0].Content)
	assert.Equal(t, []string{"collecting"}, items[2].Topics)
}

func TestPostScheduled_InterruptedWaitSkipsRest(t *testing.T) {
	interrupted := func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}
	s := newTestServer(t, withWait(interrupted))

	_, body := call(t, s, http.MethodPost, "/api/post-scheduled-content", `{"content_items":[
		{"content":"One"},
		{"content":"Two"},
		{"content":"Three"}
	]}`)
	assert.EqualValues(t, 3, body["total_processed"])
	assert.EqualValues(t, 1, body["successful_posts"])
	assert.EqualValues(t, 0, body["failed_posts"])
	assert.EqualValues(t, 2, body["skipped_posts"])
	assert.Len(t, body["results"], 1)
	assert.Equal(t, 1, s.manager.Activity().Len())
}

func TestPostScheduled_MissingContent(t *testing.T) {
	rec := &waitRecorder{}
	s := newTestServer(t, withWait(rec.wait))

	_, body := call(t, s, http.MethodPost, "/api/post-scheduled-content", `{"content_items":[{"topic":"x"},{"content":"Real"}]}`)
	assert.EqualValues(t, 1, body["successful_posts"])
	assert.EqualValues(t, 1, body["failed_posts"])
	assert.EqualValues(t, 0, body["skipped_posts"])

	results := body["results"].([]interface{})
	first := results[0].(map[string]interface{})
	assert.Equal(t, false, first["success"])
	assert.Equal(t, "Missing content", first["error"])
	assert.NotNil(t, first["original_data"])

	code, body := call(t, s, http.MethodPost, "/api/post-scheduled-content", `{"content_items":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No content items provided", body["error"])
}

func TestGenerateContent(t *testing.T) {
	s := newTestServer(t)

	_, body := call(t, s, http.MethodPost, "/api/generate-content", `{"topic":"deck_building"}`)
	assert.Equal(t, true, body["success"])
	gen := body["content"].(map[string]interface{})
	assert.NotEmpty(t, gen["content"])
	assert.NotEmpty(t, gen["hashtags"])

	_, body = call(t, s, http.MethodPost, "/api/generate-content-enhanced", `{"include_hashtags":false}`)
	enhanced := body["content"].(map[string]interface{})
	assert.Equal(t, true, enhanced["ready_to_post"])
	assert.Equal(t, enhanced["content"], enhanced["full_content_with_hashtags"])
	assert.Equal(t, false, body["posting_available"])
}

func TestGenerateAndPost(t *testing.T) {
	s := newTestServer(t)

	_, body := call(t, s, http.MethodPost, "/api/generate-and-post-content", `{}`)
	assert.Equal(t, false, body["posted"])
	assert.Equal(t, "Content generated successfully (not posted)", body["message"])
	assert.Equal(t, 0, s.manager.Activity().Len())

	_, body = call(t, s, http.MethodPost, "/api/generate-and-post-content", `{"topic":"tournament_play","post_immediately":true}`)
	assert.Equal(t, true, body["posted"])
	assert.Equal(t, "tournament_play", body["topic"])
	assert.True(t, strings.HasPrefix(body["tweet_id"].(string), "sim_tweet_"))

	items := s.manager.Activity().All()
	require.Len(t, items, 1)
	assert.Equal(t, body["content_with_hashtags"], items[0].Content)
}

func TestGenerateReply(t *testing.T) {
	s := newTestServer(t)

	code, body := call(t, s, http.MethodPost, "/api/generate-reply", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing tweet_text", body["error"])

	code, body = call(t, s, http.MethodPost, "/api/generate-reply", `{"tweet_text":"Just pulled a shiny Eevee","tweet_author":"EeveeCollector"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, false, body["llm_used"])
	assert.NotEmpty(t, body["reply"])
	assert.Equal(t, "EeveeCollector", body["author"])
}

type failingSource struct{}

func (failingSource) Fetch(ctx context.Context, max int) (feed.Batch, error) {
	return feed.Batch{}, errors.New("sheet unreachable")
}

func TestFetchTweets(t *testing.T) {
	s := newTestServer(t)

	_, body := call(t, s, http.MethodGet, "/api/fetch-tweets-from-sheets", "")
	assert.Equal(t, true, body["success"])
	assert.Equal(t, feed.SourceMock, body["source"])
	assert.EqualValues(t, 5, body["count"])

	s = newTestServer(t, withFeed(failingSource{}))
	_, body = call(t, s, http.MethodGet, "/api/fetch-tweets-from-sheets", "")
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "sheet unreachable", body["error"])
	assert.Empty(t, body["tweets"])
}
