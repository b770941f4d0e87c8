// Package jobs holds posting and replying jobs and runs their queued items
// against the social platform.
package jobs

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/tcgbot/errors"
)

// Kind is what a job does with its items
type Kind string

const (
	KindPosting  Kind = "posting"
	KindReplying Kind = "replying"
)

// ParseKind accepts the wire names, including "reply" and "post" shorthands
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "posting", "post":
		return KindPosting, nil
	case "replying", "reply":
		return KindReplying, nil
	default:
		return "", errors.NewInvalidRequestError("unknown job type %q", s)
	}
}

// Status is the lifecycle state of a job
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

// IsValidStatus returns true if the status string is a valid Status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusStopped, StatusRunning, StatusPaused:
		return true
	default:
		return false
	}
}

// Item is one piece of approved content. Reply items name their target.
type Item struct {
	Content       string   `json:"content"`
	TweetID       string   `json:"tweetId,omitempty"`
	TweetAuthor   string   `json:"tweetAuthor,omitempty"`
	OriginalTweet string   `json:"originalTweet,omitempty"`
	Topics        []string `json:"topics,omitempty"`
}

// Stats only ever count up
type Stats struct {
	PostsToday   int     `json:"postsToday"`
	RepliesToday int     `json:"repliesToday"`
	Failures     int     `json:"failures"`
	SuccessRate  float64 `json:"successRate"`
}

// Successes is the number of items that went out
func (s Stats) Successes() int {
	return s.PostsToday + s.RepliesToday
}

func successRate(successes, failures int) float64 {
	attempts := successes + failures
	if attempts == 0 {
		return 100
	}
	return math.Round(float64(successes)/float64(attempts)*1000) / 10
}

// Job is a named batch of approved content posted one item at a time
type Job struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Kind      Kind                   `json:"type"`
	Status    Status                 `json:"status"`
	Settings  map[string]interface{} `json:"settings"`
	Items     []Item                 `json:"approvedContent"`
	Stats     Stats                  `json:"stats"`
	CreatedAt time.Time              `json:"createdAt"`
	LastRun   *time.Time             `json:"lastRun"`
	NextRun   *time.Time             `json:"nextRun"`
}

// Spec is what a caller supplies to create a job
type Spec struct {
	Kind     Kind
	Name     string
	Items    []Item
	Settings map[string]interface{}
}

// clone deep-copies everything a caller could mutate
func (j *Job) clone() *Job {
	c := *j
	c.Items = make([]Item, len(j.Items))
	for i, it := range j.Items {
		if it.Topics != nil {
			it.Topics = append([]string(nil), it.Topics...)
		}
		c.Items[i] = it
	}
	if j.Settings != nil {
		c.Settings = make(map[string]interface{}, len(j.Settings))
		for k, v := range j.Settings {
			c.Settings[k] = v
		}
	}
	if j.LastRun != nil {
		t := *j.LastRun
		c.LastRun = &t
	}
	if j.NextRun != nil {
		t := *j.NextRun
		c.NextRun = &t
	}
	return &c
}

// NewJobID returns posting_job_<unix>_<suffix> or reply_job_<unix>_<suffix>
func NewJobID(kind Kind, now time.Time) string {
	prefix := "posting_job"
	if kind == KindReplying {
		prefix = "reply_job"
	}
	return fmt.Sprintf("%s_%d_%s", prefix, now.Unix(), uuid.NewString()[:8])
}

// ItemsFromSettings reads settings.approvedContent, which may hold plain
// strings or item objects
func ItemsFromSettings(settings map[string]interface{}) ([]Item, error) {
	raw, ok := settings["approvedContent"]
	if !ok || raw == nil {
		return []Item{}, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, errors.NewInvalidRequestError("approvedContent must be a list, got %T", raw)
	}

	items := make([]Item, 0, len(list))
	for i, entry := range list {
		switch v := entry.(type) {
		case string:
			items = append(items, Item{Content: v})
		case map[string]interface{}:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, errors.Wrapf(err, "approvedContent[%d]", i)
			}
			var it Item
			if err := json.Unmarshal(b, &it); err != nil {
				return nil, errors.WithDetail(
					errors.NewInvalidRequestError("approvedContent[%d] is not a valid item", i),
					err.Error())
			}
			items = append(items, it)
		default:
			return nil, errors.NewInvalidRequestError("approvedContent[%d] must be a string or object, got %T", i, entry)
		}
	}
	return items, nil
}
