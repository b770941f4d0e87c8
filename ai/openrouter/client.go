// Package openrouter is a chat completion client for OpenRouter used to
// write posts and replies. Every call is recorded in the usage ledger when a
// tracker is configured.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tcgbot/ai/tracker"
	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/internal/httpclient"
	"github.com/teranos/tcgbot/logger"
)

const (
	// DefaultModel matches the openrouter.model default in am
	DefaultModel = "openai/gpt-4o-mini"

	// DefaultBaseURL is the public OpenRouter API
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	defaultTemperature = 0.8
	defaultMaxTokens   = 300
	maxRetries         = 3
	provider           = "openrouter"
)

// Config holds client configuration
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64 // nil = 0.8
	MaxTokens   *int     // nil = 300
	Tracker     *tracker.UsageTracker
	Logger      *zap.SugaredLogger
}

// Client calls the chat completions endpoint
type Client struct {
	baseURL    string
	httpClient *httpclient.SaferClient
	config     Config
	tracker    *tracker.UsageTracker
	logger     *zap.SugaredLogger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient applies defaults and builds an SSRF-safe client
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Temperature == nil {
		t := defaultTemperature
		config.Temperature = &t
	}
	if config.MaxTokens == nil {
		n := defaultMaxTokens
		config.MaxTokens = &n
	}
	log := config.Logger
	if log == nil {
		log = logger.ComponentLogger("openrouter")
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpclient.NewSaferClient(60 * time.Second),
		config:     config,
		tracker:    config.Tracker,
		logger:     log,
		sleep:      sleepContext,
	}
}

// ChatCompletionRequest is the wire request
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message is one chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the wire response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is one completion
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage is the token accounting OpenRouter returns
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatRequest is a single-turn prompt. Operation and Topic label the
// ledger row.
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	History      []string // earlier turns of the conversation, oldest first
	Temperature  *float64
	MaxTokens    *int
	Operation    string
	Topic        string
}

// ChatResponse is the trimmed completion text
type ChatResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// IsConfigured reports whether an API key is set
func (c *Client) IsConfigured() bool {
	return c != nil && c.config.APIKey != ""
}

// Model returns the configured model
func (c *Client) Model() string {
	return c.config.Model
}

// SetHTTPClient replaces the SSRF-safe client. Tests only: httptest servers
// listen on loopback, which the safe client refuses.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}

// CreateChatCompletion sends one request without retries
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("X-Title", "tcgbot")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		err := errors.Newf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode == http.StatusTooManyRequests {
			err = errors.Wrap(errors.ErrRateLimited, err.Error())
		}
		return nil, err
	}

	var out ChatCompletionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	return &out, nil
}

// Chat sends the prompt, retrying transient network failures, and records
// the outcome in the ledger
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, errors.Wrap(errors.ErrServiceUnavailable, "OpenRouter API key not configured")
	}

	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := *c.config.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	model := c.config.Model

	messages := make([]Message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	for _, h := range req.History {
		messages = append(messages, Message{Role: "user", Content: h})
	}
	messages = append(messages, Message{Role: "user", Content: req.UserPrompt})

	wire := ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	started := time.Now()
	var (
		resp *ChatCompletionResponse
		err  error
	)
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * time.Second
			c.logger.Debugw("Retrying OpenRouter request", "attempt", attempt, "delay", delay)
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				err = errors.WithSecondaryError(err, sleepErr)
				break
			}
		}

		resp, err = c.CreateChatCompletion(ctx, wire)
		if err == nil {
			break
		}
		c.logger.Warnw("OpenRouter API error",
			"attempt", attempt+1,
			logger.FieldModel, model,
			logger.FieldError, err)
		if !isRetryableError(err) {
			break
		}
	}

	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("no response choices from OpenRouter")
	}
	if err != nil {
		c.track(ctx, req, model, temperature, maxTokens, started, nil, err)
		return nil, errors.Wrap(err, "OpenRouter API error")
	}

	c.track(ctx, req, model, temperature, maxTokens, started, &resp.Usage, nil)
	return &ChatResponse{
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:   model,
		Usage:   resp.Usage,
	}, nil
}

// track writes one ledger row. Ledger failures are logged, never returned.
func (c *Client) track(ctx context.Context, req ChatRequest, model string, temperature float64, maxTokens int, started time.Time, usage *Usage, callErr error) {
	if c.tracker == nil {
		return
	}
	finished := time.Now()
	row := &tracker.ModelUsage{
		OperationType:     req.Operation,
		Topic:             req.Topic,
		ModelName:         model,
		ModelProvider:     provider,
		ModelConfig:       tracker.NewModelConfig(&temperature, &maxTokens),
		RequestTimestamp:  started,
		ResponseTimestamp: &finished,
		Success:           callErr == nil,
	}
	if usage != nil {
		tokens := usage.TotalTokens
		cost := CalculateCost(model, usage.PromptTokens, usage.CompletionTokens)
		row.TokensUsed = &tokens
		row.Cost = &cost
	}
	if callErr != nil {
		msg := callErr.Error()
		row.ErrorMessage = &msg
	}
	if err := c.tracker.TrackUsage(context.WithoutCancel(ctx), row); err != nil {
		c.logger.Warnw("Failed to track usage", logger.FieldModel, model, logger.FieldError, err)
	}
}

// isRetryableError reports network-level failures worth another attempt
func isRetryableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
