package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/use-agent/browserd/content"
	"github.com/use-agent/browserd/engine"
	"github.com/use-agent/browserd/models"
)

func defExtractContent() mcp.Tool {
	return mcp.NewTool("extract_page_content",
		mcp.WithDescription("Extract the current page's content as clean markdown, plain text or HTML. Readability mode strips navigation, ads and boilerplate."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to read from")),
		mcp.WithString("format",
			mcp.Description("Output format: 'markdown' (default), 'text' or 'html'"),
			mcp.Enum("markdown", "text", "html"),
		),
		mcp.WithString("mode",
			mcp.Description("Extraction mode: 'readability' (default) keeps the main content, 'raw' keeps the whole page"),
			mcp.Enum("readability", "raw"),
		),
		mcp.WithString("css_selector", mcp.Description("Limit extraction to elements matching this CSS selector")),
		mcp.WithNumber("max_length", mcp.Description("Truncate the result to at most this many characters")),
	)
}

func (d *Deps) handleExtractContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var rawHTML, pageURL string
	err = d.Pool.Do(ctx, sessionID, "extract_page_content", func(ctx context.Context, t engine.Target) error {
		h, herr := t.HTML(ctx)
		if herr != nil {
			return herr
		}
		rawHTML = h
		pageURL = t.URL()
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}

	maxLen, _ := numberArg(request, "max_length")
	res, err := d.Content.Extract(rawHTML, pageURL, content.ExtractOptions{
		Format:    request.GetString("format", ""),
		Mode:      request.GetString("mode", ""),
		Selector:  request.GetString("css_selector", ""),
		MaxLength: int(maxLen),
	})
	if err != nil {
		return errorResult(err), nil
	}

	var sb strings.Builder
	if res.Title != "" {
		sb.WriteString(fmt.Sprintf("Title: %s\n", res.Title))
	}
	sb.WriteString(fmt.Sprintf("Source: %s\n\n", pageURL))
	sb.WriteString(res.Content)
	if res.Truncated {
		sb.WriteString("\n\n[content truncated]")
	}
	if res.OriginalTokens > 0 {
		saved := float64(res.OriginalTokens-res.ContentTokens) / float64(res.OriginalTokens) * 100
		sb.WriteString(fmt.Sprintf("\n\n---\nTokens: %d (saved %.0f%% from original %d)",
			res.ContentTokens, saved, res.OriginalTokens))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func defSavePage() mcp.Tool {
	return mcp.NewTool("save_page_to_file",
		mcp.WithDescription("Save the current page to a local file as HTML, markdown or plain text."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to read from")),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path to write to")),
		mcp.WithString("format",
			mcp.Description("File content: 'html' (default), 'markdown' or 'text'"),
			mcp.Enum("html", "markdown", "text"),
		),
	)
}

func (d *Deps) handleSavePage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path is required"), nil
	}

	var rawHTML, pageURL string
	err = d.Pool.Do(ctx, sessionID, "save_page_to_file", func(ctx context.Context, t engine.Target) error {
		h, herr := t.HTML(ctx)
		if herr != nil {
			return herr
		}
		rawHTML = h
		pageURL = t.URL()
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}

	format := request.GetString("format", "html")
	data := rawHTML
	if format != "html" {
		res, cerr := d.Content.Extract(rawHTML, pageURL, content.ExtractOptions{
			Format: format,
			Mode:   "raw",
		})
		if cerr != nil {
			return errorResult(cerr), nil
		}
		data = res.Content
	}

	if werr := os.WriteFile(path, []byte(data), 0o644); werr != nil {
		return errorResult(models.NewPoolError(models.ErrCodeOperationFailed,
			fmt.Sprintf("could not write page to %s", path), werr)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved %s (%d bytes) to %s", format, len(data), path)), nil
}

func defSnapshot() mcp.Tool {
	return mcp.NewTool("snapshot_page",
		mcp.WithDescription("Return a compact outline of the page: headings and interactive elements with stable refs and locators, for picking click and fill targets without reading full HTML."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to read from")),
		mcp.WithNumber("max_elements", mcp.Description("Cap on listed elements (default 120)")),
	)
}

func (d *Deps) handleSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var rawHTML, pageURL, title string
	err = d.Pool.Do(ctx, sessionID, "snapshot_page", func(ctx context.Context, t engine.Target) error {
		h, herr := t.HTML(ctx)
		if herr != nil {
			return herr
		}
		rawHTML = h
		pageURL = t.URL()
		title, _ = t.Title(ctx) // best-effort
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}

	limit := content.DefaultOutlineLimit
	if n, ok := numberArg(request, "max_elements"); ok && n > 0 {
		limit = int(n)
	}
	items := content.Outline(rawHTML, limit)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Page: %s\nURL: %s\nElements: %d\n\n", title, pageURL, len(items)))
	for _, it := range items {
		sb.WriteString(fmt.Sprintf("%s [%s]", it.Ref, it.Role))
		if it.Name != "" {
			sb.WriteString(" " + it.Name)
		}
		if it.Locator != "" {
			sb.WriteString(fmt.Sprintf("  (locator: %s)", it.Locator))
		}
		sb.WriteByte('\n')
	}
	return mcp.NewToolResultText(sb.String()), nil
}
