package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/browserd/models"
)

const (
	resourceHealth   = "browser://health"
	resourceSessions = "session://status"
	resourceHelp     = "help://tools"
)

// registerResources exposes read-only pool state alongside the tools, so MCP
// clients can poll health without burning a tool call.
func registerResources(s *server.MCPServer, d *Deps) {
	s.AddResource(mcp.NewResource(resourceHealth, "Pool health",
		mcp.WithResourceDescription("Session pool health: engine, capacity and active session ids"),
		mcp.WithMIMEType("application/json"),
	), d.readHealth)

	s.AddResource(mcp.NewResource(resourceSessions, "Session status",
		mcp.WithResourceDescription("Per-session status for every active session"),
		mcp.WithMIMEType("application/json"),
	), d.readSessions)

	s.AddResource(mcp.NewResource(resourceHelp, "Tool reference",
		mcp.WithResourceDescription("One-line reference for every available tool"),
		mcp.WithMIMEType("text/plain"),
	), d.readHelp)
}

func (d *Deps) readHealth(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(d.Pool.Health(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      resourceHealth,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (d *Deps) readSessions(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sessions := d.Pool.Sessions()
	data, err := json.MarshalIndent(models.SessionsResponse{
		Count:    len(sessions),
		Sessions: sessions,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      resourceSessions,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (d *Deps) readHelp(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	var sb strings.Builder
	for _, t := range All(d) {
		sb.WriteString(fmt.Sprintf("%s: %s\n", t.Def.Name, t.Def.Description))
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      resourceHelp,
			MIMEType: "text/plain",
			Text:     sb.String(),
		},
	}, nil
}
