package commands

import (
	"context"
	"database/sql"

	"github.com/bluesky-social/indigo/xrpc"

	"github.com/teranos/tcgbot/activity"
	"github.com/teranos/tcgbot/ai/openrouter"
	"github.com/teranos/tcgbot/ai/tracker"
	"github.com/teranos/tcgbot/am"
	"github.com/teranos/tcgbot/content"
	"github.com/teranos/tcgbot/db"
	"github.com/teranos/tcgbot/feed"
	"github.com/teranos/tcgbot/jobs"
	"github.com/teranos/tcgbot/logger"
	"github.com/teranos/tcgbot/poster"
)

// app is every long-lived component, wired from config
type app struct {
	cfg       *am.Config
	db        *sql.DB
	usage     *tracker.UsageTracker
	generator *content.Generator
	poster    poster.Poster
	manager   *jobs.Manager
	feed      feed.Source
}

// buildApp wires the bot. A database that cannot be opened disables usage
// tracking rather than failing startup.
func buildApp(ctx context.Context, cfg *am.Config) *app {
	log := logger.ComponentLogger("startup")
	a := &app{cfg: cfg}

	dbPath := cfg.GetDatabasePath()
	conn, err := db.OpenWithMigrations(dbPath, logger.ComponentLogger("db"))
	if err != nil {
		log.Warnw("Usage tracking disabled, database unavailable", "path", dbPath, logger.FieldError, err)
	} else {
		a.db = conn
		a.usage = tracker.NewUsageTracker(conn)
	}

	var llm content.LLM
	if cfg.OpenRouter.APIKey != "" {
		llm = openrouter.NewClient(openrouter.Config{
			APIKey:      cfg.OpenRouter.APIKey,
			Model:       cfg.OpenRouter.Model,
			Temperature: cfg.OpenRouter.Temperature,
			MaxTokens:   cfg.OpenRouter.MaxTokens,
			Tracker:     a.usage,
			Logger:      logger.ComponentLogger("openrouter"),
		})
	} else {
		log.Infow("OpenRouter API key not configured, content uses fallback text")
	}
	a.generator = content.NewGenerator(llm)

	a.poster = poster.FromConfig(ctx, cfg)
	gate := poster.NewGate(cfg.GetMinPostInterval())

	a.manager = jobs.NewManager(
		jobs.NewStore(),
		activity.NewLog(cfg.GetActivityCapacity()),
		a.poster,
		gate,
		jobs.ManagerConfig{
			Interval: cfg.GetPostInterval(),
			Wait:     jobs.SleepContext,
		},
	)

	a.feed = feedFromConfig(cfg, a.poster)
	return a
}

// feedFromConfig orders reply-candidate sources: the sheet, then watched
// Bluesky accounts, then fixtures
func feedFromConfig(cfg *am.Config, p poster.Poster) feed.Source {
	var sources []feed.Source
	if cfg.Feed.SheetCSVURL != "" {
		sources = append(sources, feed.NewSheetSource(cfg.Feed.SheetCSVURL, nil))
	}
	if len(cfg.Bluesky.WatchActors) > 0 {
		var client *xrpc.Client
		if b, ok := p.(*poster.Bluesky); ok {
			client = b.Client()
		}
		sources = append(sources, feed.NewBlueskySource(client, cfg.Bluesky.WatchActors))
	}
	sources = append(sources, feed.NewMockSource())
	return feed.NewChain(sources...)
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
