package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teranos/tcgbot/jobs"
	"github.com/teranos/tcgbot/version"
)

const (
	defaultActivityLimit = 10
	maxActivityLimit     = 50
)

// newMCPServer exposes job control to agents as MCP tools
func (s *Server) newMCPServer() *mcpserver.MCPServer {
	srv := mcpserver.NewMCPServer(
		"tcgbot",
		version.Get().Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions("tcgbot schedules Pokemon TCG posts and replies. Inspect and control its jobs."),
		mcpserver.WithRecovery(),
	)

	srv.AddTool(
		mcp.NewTool("bot_status",
			mcp.WithDescription("Aggregate status of every job: running flag, uptime and totals."),
		),
		s.mcpBotStatus,
	)
	srv.AddTool(
		mcp.NewTool("list_jobs",
			mcp.WithDescription("List every job in creation order."),
		),
		s.mcpListJobs,
	)
	srv.AddTool(
		mcp.NewTool("start_job",
			mcp.WithDescription("Start a stopped job or resume a paused one."),
			mcp.WithString("id", mcp.Description("Job ID"), mcp.Required()),
		),
		s.jobControl("start", s.manager.Start),
	)
	srv.AddTool(
		mcp.NewTool("stop_job",
			mcp.WithDescription("Stop a job after its in-flight item."),
			mcp.WithString("id", mcp.Description("Job ID"), mcp.Required()),
		),
		s.jobControl("stop", s.manager.Stop),
	)
	srv.AddTool(
		mcp.NewTool("pause_job",
			mcp.WithDescription("Pause a running job before its next item."),
			mcp.WithString("id", mcp.Description("Job ID"), mcp.Required()),
		),
		s.jobControl("pause", s.manager.Pause),
	)
	srv.AddTool(
		mcp.NewTool("recent_activity",
			mcp.WithDescription("Most recent posts and replies, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of items (default 10)")),
		),
		s.mcpRecentActivity,
	)
	return srv
}

func (s *Server) mcpBotStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcpJSON(jobs.Summarize(s.manager.List(), s.started, time.Now())), nil
}

func (s *Server) mcpListJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcpJSON(s.manager.List()), nil
}

func (s *Server) jobControl(action string, fn func(id string) (*jobs.Job, error)) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		job, err := fn(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to %s job %s: %v", action, id, err)), nil
		}
		return mcpJSON(job), nil
	}
}

func (s *Server) mcpRecentActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultActivityLimit)
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	items := s.manager.Activity().All()
	if len(items) > limit {
		items = items[:limit]
	}
	return mcpJSON(items), nil
}

func mcpJSON(v interface{}) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
