package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teranos/tcgbot/am"
	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/logger"
)

const (
	// ShutdownTimeout bounds draining HTTP requests and job runners
	ShutdownTimeout = 10 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// Start launches the websocket hub and the update broadcasters. Safe to
// call more than once.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.hub.run(s.ctx)
		}()
		s.startJobUpdateBroadcaster()
		s.startActivityBroadcaster()
		s.setState(ServerStateRunning)
	})
}

// Run serves on addr until ctx is cancelled, then shuts everything down
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Start()

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Infow("Server ready", logger.FieldHost, ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("HTTP shutdown incomplete", logger.FieldError, err)
		}
		return s.Stop()
	})
	return g.Wait()
}

// Stop drains job runners, disconnects websocket clients and stops the
// broadcasters
func (s *Server) Stop() error {
	if s.getState() == ServerStateStopped {
		return nil
	}
	s.logger.Infow("Initiating server shutdown")
	s.setState(ServerStateDraining)

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var stopErr error
	if err := s.manager.Shutdown(ctx); err != nil {
		stopErr = errors.Wrap(err, "job runners did not stop")
	}

	s.cancel()
	s.hub.closeAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-ctx.Done():
		s.logger.Warnw("Shutdown timed out waiting for goroutines")
	}

	s.setState(ServerStateStopped)
	return stopErr
}

// Reload applies pacing changes from a re-read config file. Other sections
// take effect on restart.
func (s *Server) Reload(cfg *am.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.manager.SetInterval(cfg.GetPostInterval())
	s.manager.Gate().SetInterval(cfg.GetMinPostInterval())
	s.logger.Infow("Applied config reload",
		logger.FieldInterval, cfg.GetPostInterval(),
		"min_post_interval", cfg.GetMinPostInterval())
	return nil
}
