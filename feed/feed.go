// Package feed supplies reply candidates: posts from the community that a
// reply job can answer. Sources are tried in order by Chain.
package feed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/logger"
)

// DefaultMaxItems caps a fetch when the caller passes zero
const DefaultMaxItems = 50

// Source labels reported to the dashboard
const (
	SourceSheet      = "Google Sheets"
	SourceSheetEmpty = "Mock Data (Google Sheets empty)"
	SourceBluesky    = "Bluesky"
	SourceMock       = "Mock Data (Google Sheets reader not available)"
)

// Tweet is one reply candidate
type Tweet struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	Author         string `json:"author"`
	AuthorName     string `json:"author_name"`
	CreatedAt      string `json:"created_at"`
	URL            string `json:"url"`
	ConversationID string `json:"conversation_id"`
}

// Batch is the result of one fetch
type Batch struct {
	Tweets []Tweet `json:"tweets"`
	Source string  `json:"source"`
}

// Source fetches up to max candidates
type Source interface {
	Fetch(ctx context.Context, max int) (Batch, error)
}

// Chain tries each source in order and returns the first batch that holds
// at least one candidate
type Chain struct {
	sources []Source
	logger  *zap.SugaredLogger
}

// NewChain builds a chain. Nil sources are skipped.
func NewChain(sources ...Source) *Chain {
	c := &Chain{logger: logger.ComponentLogger("feed")}
	for _, s := range sources {
		if s != nil {
			c.sources = append(c.sources, s)
		}
	}
	return c
}

// Fetch implements Source
func (c *Chain) Fetch(ctx context.Context, max int) (Batch, error) {
	if max <= 0 {
		max = DefaultMaxItems
	}
	if len(c.sources) == 0 {
		return Batch{}, errors.Wrap(errors.ErrServiceUnavailable, "no reply candidate source configured")
	}

	var errs error
	for i, s := range c.sources {
		batch, err := s.Fetch(ctx, max)
		if err != nil {
			c.logger.Warnw("Feed source failed, trying next",
				"position", i,
				logger.FieldError, err)
			if errs == nil {
				errs = err
			} else {
				errs = errors.WithSecondaryError(errs, err)
			}
			continue
		}
		if len(batch.Tweets) == 0 {
			c.logger.Debugw("Feed source returned nothing", "position", i, logger.FieldSource, batch.Source)
			continue
		}
		if len(batch.Tweets) > max {
			batch.Tweets = batch.Tweets[:max]
		}
		c.logger.Infow("Fetched reply candidates",
			logger.FieldSource, batch.Source,
			"count", len(batch.Tweets))
		return batch, nil
	}

	if errs != nil {
		return Batch{}, errors.Wrap(errs, "every reply candidate source failed")
	}
	return Batch{Tweets: []Tweet{}}, nil
}

// MockSource returns fixed fan posts so the reply flow can be exercised
// without any upstream
type MockSource struct {
	now func() time.Time
}

// NewMockSource returns the fixture source
func NewMockSource() *MockSource {
	return &MockSource{now: time.Now}
}

var fixtures = []struct {
	author, name, text string
	age                time.Duration
	status             int64
}{
	{"PokemonFan123", "Pokemon Fan", "Just pulled a Charizard ex from my latest Pokemon TCG pack! The artwork is incredible. Building a fire deck around it now!", 2 * time.Hour, 123456789},
	{"TCGBuilder", "TCG Builder", "Building a new deck around Pikachu VMAX! Anyone have tips for energy management with electric decks?", time.Hour, 123456790},
	{"NewTrainer99", "New Trainer", "Attended my first Pokemon TCG tournament today! Lost in the second round but learned so much. The community is amazing!", 30 * time.Minute, 123456791},
	{"EeveeCollector", "Eevee Collector", "Finally completed my Eeveelution collection! Took me months to find that perfect condition Espeon card. The hunt was worth it!", 45 * time.Minute, 123456792},
	{"BoosterBoxBen", "Booster Box Ben", "New Pokemon set releases always get me excited! Pre-ordered 3 booster boxes of the upcoming expansion. Fingers crossed for chase cards!", 3 * time.Hour, 123456793},
}

// Fetch implements Source
func (m *MockSource) Fetch(ctx context.Context, max int) (Batch, error) {
	now := m.now()
	tweets := make([]Tweet, 0, len(fixtures))
	for i, f := range fixtures {
		if max > 0 && len(tweets) >= max {
			break
		}
		id := fmt.Sprintf("tweet_%d", i+1)
		tweets = append(tweets, Tweet{
			ID:             id,
			Text:           f.text,
			Author:         f.author,
			AuthorName:     f.name,
			CreatedAt:      now.Add(-f.age).Format(time.RFC3339),
			URL:            fmt.Sprintf("https://twitter.com/%s/status/%d", f.author, f.status),
			ConversationID: id,
		})
	}
	return Batch{Tweets: tweets, Source: SourceMock}, nil
}

// emptySheetFallback stands in for a sheet with no rows
func emptySheetFallback(now time.Time) Batch {
	return Batch{
		Tweets: []Tweet{{
			ID:             "mock_tweet_1",
			Text:           "Just opened a Pokemon TCG booster pack and got some amazing cards!",
			Author:         "MockUser1",
			AuthorName:     "Mock User 1",
			CreatedAt:      now.Format(time.RFC3339),
			URL:            "https://twitter.com/MockUser1/status/1234567890",
			ConversationID: "mock_tweet_1",
		}},
		Source: SourceSheetEmpty,
	}
}
