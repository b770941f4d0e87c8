// Package content writes posts and replies about the Pokemon trading card
// game. Generation goes through an LLM when one is configured; otherwise, or
// when the call fails, fixed fallback text keeps the dashboard usable.
package content

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/teranos/tcgbot/ai/openrouter"
	"github.com/teranos/tcgbot/ai/tracker"
	"github.com/teranos/tcgbot/logger"
)

const (
	// DefaultTopic is used when a request names none
	DefaultTopic = "pokemon_tcg"

	// DefaultStyle is used when a request names none
	DefaultStyle = "engaging"

	// PostCharacterLimit is the length a post must fit in
	PostCharacterLimit = 280

	// FallbackPost is returned when generation is unavailable
	FallbackPost = "Just opened some new Pokemon TCG packs! The artwork on these cards is absolutely stunning. What's your favorite Pokemon card art? #PokemonTCG"

	// EngagementScore is the fixed score reported with generated posts
	EngagementScore = 88.5

	errNotInitialized = "Reply generator not properly initialized"

	systemPrompt = "You write short, friendly social media posts for the Pokemon trading card game community. " +
		"Sound like a fellow collector, never like an advertisement. Keep every post under 240 characters and do not add hashtags."
)

// LLM is the completion backend. *openrouter.Client satisfies it.
type LLM interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
	IsConfigured() bool
}

// Generated is the outcome of Generate. Content is always usable; Success
// reports whether the LLM wrote it.
type Generated struct {
	Content         string   `json:"content"`
	Hashtags        []string `json:"hashtags"`
	EngagementScore float64  `json:"engagement_score"`
	MentionsTradeUp bool     `json:"mentions_tradeup"`
	GeneratorUsed   bool     `json:"reply_generator_used"`
	Success         bool     `json:"-"`
	Error           string   `json:"-"`
}

// Full returns the content followed by its hashtags
func (g Generated) Full() string {
	return WithHashtags(g.Content, g.Hashtags)
}

// Enhanced adds posting readiness to a generated post
type Enhanced struct {
	Generated
	FullContent    string `json:"full_content_with_hashtags"`
	ReadyToPost    bool   `json:"ready_to_post"`
	CharacterCount int    `json:"character_count"`
	WithinLimit    bool   `json:"within_twitter_limit"`
}

// Enhance measures the full post against PostCharacterLimit
func Enhance(g Generated) Enhanced {
	full := g.Full()
	n := utf8.RuneCountInString(full)
	return Enhanced{
		Generated:      g,
		FullContent:    full,
		ReadyToPost:    true,
		CharacterCount: n,
		WithinLimit:    n <= PostCharacterLimit,
	}
}

// Reply is the outcome of Reply. On failure Text holds fallback text.
type Reply struct {
	Text    string `json:"reply"`
	Success bool   `json:"success"`
	LLMUsed bool   `json:"llm_used"`
	Error   string `json:"error,omitempty"`
}

// Generator writes posts and replies
type Generator struct {
	llm    LLM
	logger *zap.SugaredLogger
}

// NewGenerator wraps llm, which may be nil
func NewGenerator(llm LLM) *Generator {
	return &Generator{
		llm:    llm,
		logger: logger.ComponentLogger("content"),
	}
}

// Active reports whether an LLM is configured
func (g *Generator) Active() bool {
	return g != nil && g.llm != nil && g.llm.IsConfigured()
}

// Generate writes a post about topic. Failures fall back to FallbackPost.
func (g *Generator) Generate(ctx context.Context, topic, style string, includeHashtags bool) Generated {
	if topic == "" {
		topic = DefaultTopic
	}
	if style == "" {
		style = DefaultStyle
	}

	out := Generated{
		Content:         FallbackPost,
		EngagementScore: EngagementScore,
		GeneratorUsed:   g.Active(),
	}

	if !g.Active() {
		out.Error = errNotInitialized
	} else {
		prompt := fmt.Sprintf("Generate a Pokemon TCG social media post about %s in a %s style. "+
			"Make it authentic and interesting for the Pokemon TCG community.",
			humanize(topic), style)
		resp, err := g.llm.Chat(ctx, openrouter.ChatRequest{
			SystemPrompt: systemPrompt,
			UserPrompt:   prompt,
			Operation:    tracker.OperationGenerateContent,
			Topic:        topic,
		})
		switch {
		case err != nil:
			out.Error = err.Error()
			g.logger.Warnw("Content generation failed, using fallback", "topic", topic, logger.FieldError, err)
		case resp == nil || strings.TrimSpace(resp.Content) == "":
			out.Error = "generator returned empty content"
		default:
			out.Content = cleanGenerated(resp.Content)
			out.Success = true
		}
	}

	out.Hashtags = Hashtags(out.Content, includeHashtags)
	return out
}

// Reply writes a reply to text by author. history is prior conversation,
// possibly empty.
func (g *Generator) Reply(ctx context.Context, text, author, history string) Reply {
	if !g.Active() {
		return Reply{Text: FallbackReply(text), Error: errNotInitialized}
	}

	prompt := fmt.Sprintf("Write a reply to this post about the Pokemon TCG:\n\n%q", text)
	if author != "" {
		prompt = fmt.Sprintf("Write a reply to this post by @%s about the Pokemon TCG:\n\n%q", strings.TrimPrefix(author, "@"), text)
	}
	req := openrouter.ChatRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		Operation:    tracker.OperationGenerateReply,
	}
	if strings.TrimSpace(history) != "" {
		req.History = []string{"Earlier in the conversation:\n" + history}
	}

	resp, err := g.llm.Chat(ctx, req)
	if err != nil {
		g.logger.Warnw("Reply generation failed, using fallback", logger.FieldError, err)
		return Reply{Text: FallbackReply(text), Error: err.Error()}
	}
	var reply string
	if resp != nil {
		reply = cleanGenerated(resp.Content)
	}
	if reply == "" {
		return Reply{Text: FallbackReply(text), Error: "generator returned empty reply"}
	}
	return Reply{Text: reply, Success: true, LLMUsed: true}
}

// FallbackReply quotes the first 50 characters of text
func FallbackReply(text string) string {
	excerpt := text
	if utf8.RuneCountInString(excerpt) > 50 {
		excerpt = string([]rune(excerpt)[:50])
	}
	return fmt.Sprintf("Thanks for sharing! Great point about Pokemon TCG. The part about '%s...' really resonates with the community!", excerpt)
}

// cleanGenerated strips wrapping quotes models like to add
func cleanGenerated(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// humanize turns topic ids like card_pulls into "card pulls"
func humanize(topic string) string {
	return strings.ReplaceAll(topic, "_", " ")
}
