package server

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/tcgbot/activity"
	"github.com/teranos/tcgbot/jobs"
)

// hub tracks websocket clients. Registration goes through run; broadcasts
// read the client set under mu.
type hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	logger     *zap.SugaredLogger
}

func newHub(logger *zap.SugaredLogger) *hub {
	return &hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// run owns client registration until ctx ends, then disconnects everyone
func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Infow("WebSocket client connected", "client_id", c.id, "clients", total)
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Infow("WebSocket client disconnected", "client_id", c.id, "clients", total)
		}
	}
}

// broadcast queues msg for every client, skipping those that are behind.
// Returns how many accepted it.
func (h *hub) broadcast(msg interface{}) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
			sent++
		default:
		}
	}
	return sent
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// startJobUpdateBroadcaster forwards every job change to websocket clients
func (s *Server) startJobUpdateBroadcaster() {
	store := s.manager.Store()
	jobChan := store.Subscribe()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			// Unsubscribe before closing so the store never sends on a
			// closed channel
			store.Unsubscribe(jobChan)
			close(jobChan)
		}()

		for {
			select {
			case <-s.ctx.Done():
				return
			case job := <-jobChan:
				s.broadcastJobUpdate(job)
			}
		}
	}()
	s.logger.Infow("Job update broadcaster started")
}

// startActivityBroadcaster forwards every published item to websocket
// clients
func (s *Server) startActivityBroadcaster() {
	log := s.manager.Activity()
	itemChan := log.Subscribe()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			log.Unsubscribe(itemChan)
			close(itemChan)
		}()

		for {
			select {
			case <-s.ctx.Done():
				return
			case item := <-itemChan:
				s.broadcastActivity(item)
			}
		}
	}()
	s.logger.Infow("Activity broadcaster started")
}

func (s *Server) broadcastJobUpdate(job *jobs.Job) {
	sent := s.hub.broadcast(envelope{
		"type":      "job_update",
		"job":       job,
		"timestamp": timestamp(),
	})
	s.logger.Debugw("Broadcast job update", "job_id", job.ID, "status", job.Status, "clients", sent)
}

func (s *Server) broadcastActivity(item activity.PostedItem) {
	sent := s.hub.broadcast(envelope{
		"type":      "activity",
		"item":      item,
		"timestamp": timestamp(),
	})
	s.logger.Debugw("Broadcast activity", "item_id", item.ID, "kind", item.Kind, "clients", sent)
}
