package server

import (
	"bufio"
	"net"
	"net/http"
	"slices"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/cors"

	"github.com/teranos/tcgbot/errors"
)

// setupRoutes registers every endpoint on the server's own mux
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.HandleRoot)
	s.mux.HandleFunc("GET /api/health", s.HandleHealth)
	s.mux.HandleFunc("GET /api/usage-stats", s.HandleUsageStats)

	// Catalogues and history
	s.mux.HandleFunc("GET /api/posts", s.HandlePosts)
	s.mux.HandleFunc("GET /api/topics", s.HandleTopics)
	s.mux.HandleFunc("GET /api/content-topics", s.HandleContentTopics)
	s.mux.HandleFunc("GET /api/recent-posts", s.HandleRecentPosts)

	// Jobs
	s.mux.HandleFunc("GET /api/bot-status", s.HandleBotStatus)
	s.mux.HandleFunc("GET /api/bot-jobs", s.HandleListJobs)
	s.mux.HandleFunc("GET /api/bot-job/{id}", s.HandleGetJob)
	s.mux.HandleFunc("POST /api/bot-job/{id}/start", s.HandleStartJob)
	s.mux.HandleFunc("POST /api/bot-job/{id}/stop", s.HandleStopJob)
	s.mux.HandleFunc("POST /api/bot-job/{id}/pause", s.HandlePauseJob)
	s.mux.HandleFunc("POST /api/bot-job/{id}/rename", s.HandleRenameJob)
	s.mux.HandleFunc("POST /api/bot-job/create-posting-job", s.HandleCreatePostingJob)
	s.mux.HandleFunc("POST /api/bot-job/create-reply-job", s.HandleCreateReplyJob)

	// Direct posting
	s.mux.HandleFunc("POST /api/post-to-twitter", s.HandlePostItem)
	s.mux.HandleFunc("POST /api/post-reply-with-tracking", s.HandlePostReply)
	s.mux.HandleFunc("POST /api/post-scheduled-content", s.HandlePostScheduled)
	s.mux.HandleFunc("GET /api/posting-queue", s.HandlePostingQueue)

	// Generation
	s.mux.HandleFunc("POST /api/generate-content", s.HandleGenerateContent)
	s.mux.HandleFunc("POST /api/generate-content-enhanced", s.HandleGenerateContentEnhanced)
	s.mux.HandleFunc("POST /api/generate-and-post-content", s.HandleGenerateAndPost)
	s.mux.HandleFunc("POST /api/generate-reply", s.HandleGenerateReply)
	s.mux.HandleFunc("GET /api/fetch-tweets-from-sheets", s.HandleFetchTweets)

	// Streams
	s.mux.HandleFunc("GET /ws", s.HandleWebSocket)
	s.mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.newMCPServer()))
}

// corsMiddleware applies server.allowed_origins, answering preflights
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origins := s.cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: !slices.Contains(origins, "*"),
	})
	return c.Handler(next)
}

// logRequests logs every request at debug with its status and duration
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debugw("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// statusRecorder captures the status code while passing through the
// optional interfaces websocket upgrades and streaming responses need
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
