package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/use-agent/browserd/models"
	"github.com/use-agent/browserd/pool"
)

func defCreateSession() mcp.Tool {
	return mcp.NewTool("create_browser_session",
		mcp.WithDescription("Create a new browser session and return its id. The id is required by every other tool."),
		mcp.WithString("browser_type",
			mcp.Description("Engine to use: 'chromium' (default), 'firefox' or 'webkit'"),
			mcp.Enum("chromium", "firefox", "webkit"),
		),
		mcp.WithNumber("viewport_width", mcp.Description("Viewport width in pixels (default: pool setting)")),
		mcp.WithNumber("viewport_height", mcp.Description("Viewport height in pixels (default: pool setting)")),
		mcp.WithNumber("timeout_ms", mcp.Description("Default operation timeout for this session in milliseconds")),
		mcp.WithBoolean("stealth", mcp.Description("Apply bot-detection evasion to the session's page")),
	)
}

func (d *Deps) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := pool.CreateOptions{
		EngineKind: request.GetString("browser_type", ""),
		Stealth:    boolArg(request, "stealth"),
	}

	w, okW := numberArg(request, "viewport_width")
	h, okH := numberArg(request, "viewport_height")
	if okW != okH {
		return mcp.NewToolResultError("viewport_width and viewport_height must be set together"), nil
	}
	if okW {
		if w < 1 || h < 1 {
			return mcp.NewToolResultError("viewport dimensions must be positive"), nil
		}
		opts.Viewport = &models.Viewport{Width: int(w), Height: int(h)}
	}
	if ms := timeoutArg(request); ms > 0 {
		opts.Timeout = time.Duration(ms) * time.Millisecond
	}

	sess, err := d.Pool.CreateSession(ctx, opts)
	if err != nil {
		return errorResult(err), nil
	}

	st := sess.Status()
	return mcp.NewToolResultText(fmt.Sprintf(
		"Created session %s (%s, %dx%d, timeout %.0fms)",
		st.ID, st.EngineKind, st.Viewport.Width, st.Viewport.Height, st.TimeoutMs,
	)), nil
}

func defCloseSession() mcp.Tool {
	return mcp.NewTool("close_browser_session",
		mcp.WithDescription("Close a browser session and release its pool slot."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to close")),
	)
}

func (d *Deps) handleCloseSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	if !d.Pool.RemoveSession(ctx, sessionID) {
		return errorResult(models.NewPoolError(models.ErrCodeSessionNotFound,
			fmt.Sprintf("no session with id %s", sessionID), nil)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s closed.", sessionID)), nil
}

func defListSessions() mcp.Tool {
	return mcp.NewTool("list_browser_sessions",
		mcp.WithDescription("List every active session with its state, engine and last activity."),
	)
}

func (d *Deps) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := d.Pool.Sessions()
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No active sessions."), nil
	}

	data, err := json.MarshalIndent(models.SessionsResponse{
		Count:    len(sessions),
		Sessions: sessions,
	}, "", "  ")
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
