package poster

import (
	"context"
	"time"

	"github.com/teranos/tcgbot/am"
	"github.com/teranos/tcgbot/logger"
)

// loginTimeout bounds the startup login so a slow PDS cannot block boot
const loginTimeout = 15 * time.Second

// FromConfig picks the poster once at startup: Bluesky when credentials are
// configured and login succeeds, Simulated otherwise.
func FromConfig(ctx context.Context, cfg *am.Config) Poster {
	log := logger.ComponentLogger("poster")

	if cfg.Bot.Simulate {
		log.Infow("Simulated posting forced by bot.simulate")
		return NewSimulated(cfg.Bluesky.Identifier)
	}
	if !cfg.HasBlueskyCredentials() {
		log.Warnw("Bluesky credentials not configured, posting is simulated")
		return NewSimulated("")
	}

	loginCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	b, err := NewBluesky(loginCtx, BlueskyConfig{
		PDSHost:     cfg.Bluesky.PDSHost,
		Identifier:  cfg.Bluesky.Identifier,
		AppPassword: cfg.Bluesky.AppPassword,
	})
	if err != nil {
		log.Warnw("Failed to authenticate with PDS, posting is simulated",
			logger.FieldHost, cfg.Bluesky.PDSHost,
			"identifier", cfg.Bluesky.Identifier,
			logger.FieldError, err)
		return NewSimulated(cfg.Bluesky.Identifier)
	}

	log.Infow("Authenticated with PDS",
		logger.FieldHost, cfg.Bluesky.PDSHost,
		"handle", b.Handle())
	return b
}
