package feed

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/xrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/logger"
	"github.com/teranos/tcgbot/poster"
)

// PublicAppView serves author feeds without a session
const PublicAppView = "https://public.api.bsky.app"

// maxConcurrentActors bounds parallel author feed requests
const maxConcurrentActors = 4

// BlueskySource reads recent posts from watched accounts
type BlueskySource struct {
	client *xrpc.Client
	actors []string
	logger *zap.SugaredLogger
}

// NewBlueskySource reads the feeds of actors (handles or DIDs). A nil
// client reads from PublicAppView.
func NewBlueskySource(client *xrpc.Client, actors []string) *BlueskySource {
	if client == nil {
		client = &xrpc.Client{Host: PublicAppView}
	}
	var clean []string
	for _, a := range actors {
		if a = strings.TrimPrefix(strings.TrimSpace(a), "@"); a != "" {
			clean = append(clean, a)
		}
	}
	return &BlueskySource{
		client: client,
		actors: clean,
		logger: logger.ComponentLogger("feed.bluesky"),
	}
}

// Fetch implements Source. Feeds are fetched concurrently and merged newest
// first. One failing actor does not fail the batch.
func (b *BlueskySource) Fetch(ctx context.Context, max int) (Batch, error) {
	if len(b.actors) == 0 {
		return Batch{}, errors.Wrap(errors.ErrServiceUnavailable, "no bluesky accounts to watch")
	}
	if max <= 0 {
		max = DefaultMaxItems
	}
	limit := int64(max)
	if limit > 100 {
		limit = 100
	}

	var (
		mu     sync.Mutex
		tweets []Tweet
		failed []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentActors)
	for _, actor := range b.actors {
		g.Go(func() error {
			resp, err := appbsky.FeedGetAuthorFeed(gctx, b.client, actor, "", "posts_no_replies", false, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				b.logger.Warnw("Failed to get author feed", "actor", actor, logger.FieldError, err)
				failed = append(failed, errors.Wrapf(err, "author feed %s", actor))
				return nil
			}
			for _, item := range resp.Feed {
				if t, ok := tweetFromFeedItem(item); ok {
					tweets = append(tweets, t)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) == len(b.actors) {
		err := failed[0]
		for _, e := range failed[1:] {
			err = errors.WithSecondaryError(err, e)
		}
		return Batch{}, err
	}

	slices.SortStableFunc(tweets, func(a, c Tweet) int {
		return parseTime(c.CreatedAt).Compare(parseTime(a.CreatedAt))
	})
	if len(tweets) > max {
		tweets = tweets[:max]
	}
	return Batch{Tweets: tweets, Source: SourceBluesky}, nil
}

// tweetFromFeedItem flattens a feed entry. Entries that are not posts are
// dropped.
func tweetFromFeedItem(item *appbsky.FeedDefs_FeedViewPost) (Tweet, bool) {
	if item == nil || item.Post == nil || item.Post.Record == nil || item.Post.Author == nil {
		return Tweet{}, false
	}
	rec, ok := item.Post.Record.Val.(*appbsky.FeedPost)
	if !ok || strings.TrimSpace(rec.Text) == "" {
		return Tweet{}, false
	}

	post := item.Post
	t := Tweet{
		ID:             post.Uri,
		Text:           rec.Text,
		Author:         post.Author.Handle,
		AuthorName:     post.Author.Handle,
		CreatedAt:      rec.CreatedAt,
		URL:            poster.TargetPermalink(post.Author.Handle, post.Uri),
		ConversationID: post.Uri,
	}
	if post.Author.DisplayName != nil && *post.Author.DisplayName != "" {
		t.AuthorName = *post.Author.DisplayName
	}
	if t.CreatedAt == "" {
		t.CreatedAt = post.IndexedAt
	}
	if rec.Reply != nil && rec.Reply.Root != nil {
		t.ConversationID = rec.Reply.Root.Uri
	}
	return t, true
}

// parseTime reads an AT Protocol datetime; unparseable values sort last
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
