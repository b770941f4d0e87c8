// Package activity keeps the bounded, most-recent-first history of posts and
// replies shown on the dashboard.
package activity

import (
	"sync"
	"time"
)

// DefaultCapacity is how many items the dashboard history keeps
const DefaultCapacity = 50

// SubscriberChannelBufferSize is the buffer size for subscriber channels
const SubscriberChannelBufferSize = 100

// Kind distinguishes original posts from replies
type Kind string

const (
	KindPost  Kind = "post"
	KindReply Kind = "reply"
)

// Engagement counters start at zero and are never updated afterwards
type Engagement struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
}

// RepliedTo describes the item a reply answered
type RepliedTo struct {
	TweetID string `json:"tweet_id"`
	Author  string `json:"author"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// PostedItem is one completed post or reply
type PostedItem struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Kind       Kind       `json:"type"`
	Engagement Engagement `json:"engagement"`
	Timestamp  time.Time  `json:"timestamp"`
	Topics     []string   `json:"topics"`
	URL        string     `json:"tweet_url"`
	ItemID     string     `json:"tweet_id"`
	JobID      string     `json:"job_id,omitempty"`
	Simulated  bool       `json:"simulated"`
	RepliedTo  *RepliedTo `json:"replied_to,omitempty"`
}

// Log is a fixed-capacity, mutex-guarded history. The zero value is not
// usable; construct with NewLog.
type Log struct {
	mu          sync.RWMutex
	items       []PostedItem // index 0 is the most recent
	capacity    int
	subscribers []chan PostedItem
}

// NewLog creates a log holding at most capacity items. Non-positive
// capacities fall back to DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		items:    make([]PostedItem, 0, capacity),
		capacity: capacity,
	}
}

// Append inserts item at the front, evicting the oldest entry when full.
// Zero timestamps and nil topics are filled in.
func (l *Log) Append(item PostedItem) {
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	if item.Topics == nil {
		item.Topics = []string{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.items) < l.capacity {
		l.items = append(l.items, PostedItem{})
	}
	copy(l.items[1:], l.items[:len(l.items)-1])
	l.items[0] = item

	for _, ch := range l.subscribers {
		select {
		case ch <- item:
		default:
		}
	}
}

// All returns a copy of the history, most recent first
func (l *Log) All() []PostedItem {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]PostedItem, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of items held
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Capacity returns the maximum number of items held
func (l *Log) Capacity() int {
	return l.capacity
}

// Subscribe returns a channel receiving every appended item.
// Slow subscribers miss items rather than block Append.
func (l *Log) Subscribe() chan PostedItem {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan PostedItem, SubscriberChannelBufferSize)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Unsubscribe removes ch. The channel is not closed.
func (l *Log) Unsubscribe(ch chan PostedItem) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, sub := range l.subscribers {
		if sub == ch {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			return
		}
	}
}
