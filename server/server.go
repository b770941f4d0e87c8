// Package server exposes the bot over HTTP: the dashboard REST API, a
// websocket stream of job and activity updates, and an MCP endpoint for
// agents.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/teranos/tcgbot/ai/tracker"
	"github.com/teranos/tcgbot/am"
	"github.com/teranos/tcgbot/content"
	"github.com/teranos/tcgbot/feed"
	"github.com/teranos/tcgbot/jobs"
	"github.com/teranos/tcgbot/logger"
)

// ServerState tracks the lifecycle for health reporting
type ServerState int32

const (
	ServerStateRunning ServerState = iota
	ServerStateDraining
	ServerStateStopped
)

func (s ServerState) String() string {
	switch s {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Deps are the components the handlers serve
type Deps struct {
	Config    *am.Config
	Manager   *jobs.Manager
	Generator *content.Generator
	Feed      feed.Source
	Usage     *tracker.UsageTracker // nil disables /api/usage-stats

	// Wait paces /api/post-scheduled-content between items. Defaults to
	// jobs.SleepContext.
	Wait jobs.WaitFunc
}

// Server is the HTTP surface of the bot
type Server struct {
	cfg       *am.Config
	manager   *jobs.Manager
	generator *content.Generator
	feed      feed.Source
	usage     *tracker.UsageTracker
	wait      jobs.WaitFunc
	validate  *validator.Validate
	started   time.Time

	hub     *hub
	mux     *http.ServeMux
	handler http.Handler

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	state     atomic.Int32

	logger *zap.SugaredLogger
}

// New builds a server. Background goroutines start with Run or Start.
func New(deps Deps) *Server {
	if deps.Config == nil {
		deps.Config = &am.Config{}
	}
	if deps.Wait == nil {
		deps.Wait = jobs.SleepContext
	}
	if deps.Feed == nil {
		deps.Feed = feed.NewMockSource()
	}
	if deps.Generator == nil {
		deps.Generator = content.NewGenerator(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       deps.Config,
		manager:   deps.Manager,
		generator: deps.Generator,
		feed:      deps.Feed,
		usage:     deps.Usage,
		wait:      deps.Wait,
		validate:  validator.New(),
		started:   time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.ComponentLogger("server"),
	}
	s.hub = newHub(s.logger)
	s.mux = http.NewServeMux()
	s.setupRoutes()
	s.handler = s.corsMiddleware(s.logRequests(s.mux))
	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) getState() ServerState {
	return ServerState(s.state.Load())
}

func (s *Server) setState(state ServerState) {
	s.state.Store(int32(state))
	s.logger.Infow("Server state changed", "new_state", state.String())
}
