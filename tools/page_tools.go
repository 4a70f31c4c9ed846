package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/use-agent/browserd/engine"
	"github.com/use-agent/browserd/models"
)

func defNavigate() mcp.Tool {
	return mcp.NewTool("navigate_to_url",
		mcp.WithDescription("Navigate a session's page to a URL and wait for the load state. Returns the final URL after redirects."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to drive, from create_browser_session")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Absolute http(s) URL to open")),
		mcp.WithString("wait_until",
			mcp.Description("Load state to wait for: 'load' (default), 'domcontentloaded', 'networkidle' or 'commit'"),
			mcp.Enum("load", "domcontentloaded", "networkidle", "commit"),
		),
		mcp.WithNumber("timeout_ms", mcp.Description("Navigation timeout in milliseconds (default: session timeout)")),
	)
}

func (d *Deps) handleNavigate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	rawURL, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}
	if u, perr := url.Parse(rawURL); perr != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return errorResult(models.NewPoolError(models.ErrCodeInvalidInput,
			fmt.Sprintf("url %q must be absolute http(s)", rawURL), nil)), nil
	}

	var finalURL, title string
	err = d.Pool.Do(ctx, sessionID, "navigate_to_url", func(ctx context.Context, t engine.Target) error {
		u, nerr := t.Navigate(ctx, rawURL, engine.NavigateOptions{
			WaitUntil: request.GetString("wait_until", ""),
			TimeoutMs: timeoutArg(request),
		})
		if nerr != nil {
			return nerr
		}
		finalURL = u
		title, _ = t.Title(ctx) // best-effort
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}

	result := fmt.Sprintf("Navigated to %s", finalURL)
	if title != "" {
		result += fmt.Sprintf("\nTitle: %s", title)
	}
	return mcp.NewToolResultText(result), nil
}

func defClick() mcp.Tool {
	return mcp.NewTool("click_element",
		mcp.WithDescription("Click the element matching a CSS selector."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to drive")),
		mcp.WithString("selector", mcp.Required(), mcp.Description("CSS selector of the element to click")),
		mcp.WithString("button",
			mcp.Description("Mouse button: 'left' (default), 'right' or 'middle'"),
			mcp.Enum("left", "right", "middle"),
		),
		mcp.WithNumber("click_count", mcp.Description("Number of clicks, e.g. 2 for double click")),
		mcp.WithBoolean("force", mcp.Description("Skip actionability checks before clicking")),
		mcp.WithNumber("timeout_ms", mcp.Description("Timeout in milliseconds (default: session timeout)")),
	)
}

func (d *Deps) handleClick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	selector, err := request.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError("selector is required"), nil
	}

	count, _ := numberArg(request, "click_count")
	err = d.Pool.Do(ctx, sessionID, "click_element", func(ctx context.Context, t engine.Target) error {
		return t.Click(ctx, selector, engine.ClickOptions{
			Button:     request.GetString("button", ""),
			ClickCount: int(count),
			Force:      boolArg(request, "force"),
			TimeoutMs:  timeoutArg(request),
		})
	})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Clicked %q.", selector)), nil
}

func defFill() mcp.Tool {
	return mcp.NewTool("fill_input",
		mcp.WithDescription("Fill the input or textarea matching a CSS selector with a value, replacing its current content."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to drive")),
		mcp.WithString("selector", mcp.Required(), mcp.Description("CSS selector of the input")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Text to fill in")),
		mcp.WithNumber("timeout_ms", mcp.Description("Timeout in milliseconds (default: session timeout)")),
	)
}

func (d *Deps) handleFill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	selector, err := request.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError("selector is required"), nil
	}
	value, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError("value is required"), nil
	}

	err = d.Pool.Do(ctx, sessionID, "fill_input", func(ctx context.Context, t engine.Target) error {
		return t.Fill(ctx, selector, value, engine.FillOptions{TimeoutMs: timeoutArg(request)})
	})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Filled %q.", selector)), nil
}

func defWaitForSelector() mcp.Tool {
	return mcp.NewTool("wait_for_selector",
		mcp.WithDescription("Wait until the element matching a CSS selector reaches a state."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to drive")),
		mcp.WithString("selector", mcp.Required(), mcp.Description("CSS selector to wait for")),
		mcp.WithString("state",
			mcp.Description("State to wait for: 'visible' (default), 'attached', 'detached' or 'hidden'"),
			mcp.Enum("visible", "attached", "detached", "hidden"),
		),
		mcp.WithNumber("timeout_ms", mcp.Description("Timeout in milliseconds (default: session timeout)")),
	)
}

func (d *Deps) handleWaitForSelector(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	selector, err := request.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError("selector is required"), nil
	}

	state := request.GetString("state", "visible")
	err = d.Pool.Do(ctx, sessionID, "wait_for_selector", func(ctx context.Context, t engine.Target) error {
		return t.WaitForSelector(ctx, selector, engine.WaitOptions{
			State:     state,
			TimeoutMs: timeoutArg(request),
		})
	})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Selector %q is now %s.", selector, state)), nil
}

func defTextContent() mcp.Tool {
	return mcp.NewTool("get_text_content",
		mcp.WithDescription("Return the visible text of the element matching a CSS selector, or of the whole page."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to read from")),
		mcp.WithString("selector", mcp.Description("CSS selector (default: whole page body)")),
	)
}

func (d *Deps) handleTextContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var text string
	err = d.Pool.Do(ctx, sessionID, "get_text_content", func(ctx context.Context, t engine.Target) error {
		var terr error
		text, terr = t.Text(ctx, request.GetString("selector", ""))
		return terr
	})
	if err != nil {
		return errorResult(err), nil
	}
	if text == "" {
		return mcp.NewToolResultText("(no text content)"), nil
	}
	return mcp.NewToolResultText(text), nil
}

func defElementAttribute() mcp.Tool {
	return mcp.NewTool("get_element_attribute",
		mcp.WithDescription("Return the value of one attribute of the element matching a CSS selector."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to read from")),
		mcp.WithString("selector", mcp.Required(), mcp.Description("CSS selector of the element")),
		mcp.WithString("attribute", mcp.Required(), mcp.Description("Attribute name, e.g. 'href' or 'value'")),
	)
}

func (d *Deps) handleElementAttribute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	selector, err := request.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError("selector is required"), nil
	}
	attribute, err := request.RequireString("attribute")
	if err != nil {
		return mcp.NewToolResultError("attribute is required"), nil
	}

	var value string
	err = d.Pool.Do(ctx, sessionID, "get_element_attribute", func(ctx context.Context, t engine.Target) error {
		var aerr error
		value, aerr = t.Attribute(ctx, selector, attribute)
		return aerr
	})
	if err != nil {
		return errorResult(err), nil
	}
	if value == "" {
		return mcp.NewToolResultText(fmt.Sprintf("Attribute %q of %q is empty or not present.", attribute, selector)), nil
	}
	return mcp.NewToolResultText(value), nil
}

func defPageTitle() mcp.Tool {
	return mcp.NewTool("get_page_title",
		mcp.WithDescription("Return the current page title."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to read from")),
	)
}

func (d *Deps) handlePageTitle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var title string
	err = d.Pool.Do(ctx, sessionID, "get_page_title", func(ctx context.Context, t engine.Target) error {
		var terr error
		title, terr = t.Title(ctx)
		return terr
	})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(title), nil
}

func defPageURL() mcp.Tool {
	return mcp.NewTool("get_page_url",
		mcp.WithDescription("Return the current page URL."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to read from")),
	)
}

func (d *Deps) handlePageURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var pageURL string
	err = d.Pool.Do(ctx, sessionID, "get_page_url", func(ctx context.Context, t engine.Target) error {
		pageURL = t.URL()
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(pageURL), nil
}

func defScreenshot() mcp.Tool {
	return mcp.NewTool("take_screenshot",
		mcp.WithDescription("Capture a screenshot of the current page. With 'path' the image is written to disk, otherwise it is returned base64-encoded."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to capture")),
		mcp.WithString("path", mcp.Description("File path to save the image to (optional)")),
		mcp.WithBoolean("full_page", mcp.Description("Capture the full scrollable page instead of the viewport")),
		mcp.WithString("format",
			mcp.Description("Image format: 'png' (default) or 'jpeg'"),
			mcp.Enum("png", "jpeg"),
		),
		mcp.WithNumber("quality", mcp.Description("JPEG quality 1-100 (jpeg only)")),
	)
}

func (d *Deps) handleScreenshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	format := request.GetString("format", "png")
	quality, _ := numberArg(request, "quality")
	var img []byte
	err = d.Pool.Do(ctx, sessionID, "take_screenshot", func(ctx context.Context, t engine.Target) error {
		var serr error
		img, serr = t.Screenshot(ctx, engine.ScreenshotOptions{
			FullPage: boolArg(request, "full_page"),
			Format:   format,
			Quality:  int(quality),
		})
		return serr
	})
	if err != nil {
		return errorResult(err), nil
	}

	if path := request.GetString("path", ""); path != "" {
		if werr := os.WriteFile(path, img, 0o644); werr != nil {
			return errorResult(models.NewPoolError(models.ErrCodeOperationFailed,
				fmt.Sprintf("could not write screenshot to %s", path), werr)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Screenshot saved to %s (%s, %d bytes)", path, format, len(img))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Screenshot captured (%s, %d bytes), base64:\n%s",
		format, len(img), base64.StdEncoding.EncodeToString(img),
	)), nil
}

func defEvaluate() mcp.Tool {
	return mcp.NewTool("execute_javascript",
		mcp.WithDescription("Evaluate a JavaScript expression in the page and return its JSON-serialized result."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to run in")),
		mcp.WithString("script", mcp.Required(), mcp.Description("JavaScript expression or IIFE to evaluate")),
	)
}

func (d *Deps) handleEvaluate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	script, err := request.RequireString("script")
	if err != nil {
		return mcp.NewToolResultError("script is required"), nil
	}

	var value any
	err = d.Pool.Do(ctx, sessionID, "execute_javascript", func(ctx context.Context, t engine.Target) error {
		var eerr error
		value, eerr = t.Evaluate(ctx, script)
		return eerr
	})
	if err != nil {
		return errorResult(err), nil
	}

	data, merr := json.MarshalIndent(value, "", "  ")
	if merr != nil {
		return mcp.NewToolResultText(fmt.Sprintf("%v", value)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
