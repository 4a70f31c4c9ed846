// Package tools maps the session pool and its page operations onto MCP tools
// and resources. The registry in All is the single place a tool exists:
// definition and handler side by side, assembled at startup. Every tool takes
// an explicit session_id; there is no implicit current session.
package tools

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/browserd/content"
	"github.com/use-agent/browserd/models"
	"github.com/use-agent/browserd/pool"
)

// Deps carries what handlers operate on: the pool instance and the content
// pipeline, both constructed in main and passed down.
type Deps struct {
	Pool    *pool.Manager
	Content *content.Pipeline
}

// Tool pairs one tool definition with its handler.
type Tool struct {
	Def     mcp.Tool
	Handler server.ToolHandlerFunc
}

// All returns the complete tool table, in help display order.
func All(d *Deps) []Tool {
	return []Tool{
		{defCreateSession(), d.handleCreateSession},
		{defCloseSession(), d.handleCloseSession},
		{defListSessions(), d.handleListSessions},
		{defNavigate(), d.handleNavigate},
		{defClick(), d.handleClick},
		{defFill(), d.handleFill},
		{defWaitForSelector(), d.handleWaitForSelector},
		{defTextContent(), d.handleTextContent},
		{defElementAttribute(), d.handleElementAttribute},
		{defPageTitle(), d.handlePageTitle},
		{defPageURL(), d.handlePageURL},
		{defScreenshot(), d.handleScreenshot},
		{defEvaluate(), d.handleEvaluate},
		{defExtractContent(), d.handleExtractContent},
		{defSavePage(), d.handleSavePage},
		{defSnapshot(), d.handleSnapshot},
	}
}

// Register adds every tool and resource to the MCP server.
func Register(s *server.MCPServer, d *Deps) {
	for _, t := range All(d) {
		s.AddTool(t.Def, t.Handler)
	}
	registerResources(s, d)
}

// errorResult renders a taxonomy error as the tool failure payload, keeping
// the error code visible to the caller.
func errorResult(err error) *mcp.CallToolResult {
	var perr *models.PoolError
	if errors.As(err, &perr) {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", perr.Code, perr.Message))
	}
	return mcp.NewToolResultError(err.Error())
}

// numberArg reads an optional numeric argument. JSON numbers arrive as float64.
func numberArg(request mcp.CallToolRequest, key string) (float64, bool) {
	v, ok := request.GetArguments()[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func boolArg(request mcp.CallToolRequest, key string) bool {
	v, ok := request.GetArguments()[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// timeoutArg reads timeout_ms; 0 means the session or engine default applies.
func timeoutArg(request mcp.CallToolRequest) float64 {
	ms, ok := numberArg(request, "timeout_ms")
	if !ok || ms <= 0 {
		return 0
	}
	return ms
}
