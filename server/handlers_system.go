package server

import (
	"math"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/tcgbot/logger"
	"github.com/teranos/tcgbot/version"
)

// usageWindow is the lookback for /api/usage-stats
const usageWindow = 24 * time.Hour

// HandleRoot answers liveness probes at /
func (s *Server) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{
		"message":                "Pokemon TCG Bot API is running",
		"status":                 "healthy",
		"reply_generator_active": s.generator.Active(),
		"timestamp":              timestamp(),
	})
}

// HandleHealth reports component readiness and host memory
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	replyStatus := "fallback"
	if s.generator.Active() {
		replyStatus = "active"
	}

	body := envelope{
		"status":            "healthy",
		"message":           "Backend is running",
		"reply_status":      replyStatus,
		"posting_available": !s.manager.Poster().Simulated(),
		"server_state":      s.getState().String(),
		"version":           version.Get(),
		"websocket_clients": s.hub.count(),
		"timestamp":         timestamp(),
	}
	if v, err := mem.VirtualMemory(); err == nil {
		body["system"] = envelope{
			"memory_total_gb":     round1(float64(v.Total) / (1 << 30)),
			"memory_used_percent": round1(v.UsedPercent),
		}
	} else {
		s.logger.Debugw("Failed to read host memory", logger.FieldError, err)
	}
	writeJSON(w, http.StatusOK, body)
}

// HandleUsageStats reports LLM usage over the last day
func (s *Server) HandleUsageStats(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		s.fail(w, http.StatusOK, "usage tracking not configured")
		return
	}
	stats, err := s.usage.Report(r.Context(), time.Now().Add(-usageWindow))
	if err != nil {
		s.logger.Errorw("Failed to read usage stats", logger.FieldError, err)
		s.failErr(w, err)
		return
	}
	s.ok(w, envelope{"window_hours": int(usageWindow.Hours()), "usage": stats})
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
