package engine

import (
	"context"
	"fmt"

	"github.com/use-agent/browserd/models"
)

// Kind identifies which browser engine a handle drives.
type Kind string

const (
	KindChromium Kind = "chromium"
	KindFirefox  Kind = "firefox"
	KindWebKit   Kind = "webkit"
)

// ParseKind validates a config/tool-supplied engine kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindChromium, KindFirefox, KindWebKit:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown engine kind %q (want chromium, firefox or webkit)", s)
}

// Driver is the process-wide engine runtime. It owns no browser until
// Launch is called; Start only brings up the runtime itself.
type Driver interface {
	// Start brings up the engine runtime. Idempotent.
	Start(ctx context.Context) error

	// Launch starts one browser engine instance of the given kind.
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)

	// Stop tears down the runtime. Launched browsers must be closed first.
	Stop() error
}

// Browser is one running engine instance, shared by all sessions of its kind.
// NewTarget may be called concurrently from independent sessions.
type Browser interface {
	Kind() Kind

	// NewTarget creates an isolated browsing context with one live page.
	NewTarget(ctx context.Context, opts TargetOptions) (Target, error)

	Close() error
}

// Target is one isolated browsing context plus its active page. A Target is
// exclusive to a single session; its methods are never called concurrently.
// Close releases the page before the context and is safe to call twice.
type Target interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) (finalURL string, err error)
	Click(ctx context.Context, selector string, opts ClickOptions) error
	Fill(ctx context.Context, selector, value string, opts FillOptions) error
	WaitForSelector(ctx context.Context, selector string, opts WaitOptions) error
	Text(ctx context.Context, selector string) (string, error)
	Attribute(ctx context.Context, selector, name string) (string, error)
	Title(ctx context.Context) (string, error)
	URL() string
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error)
	Evaluate(ctx context.Context, expression string) (any, error)
	Close(ctx context.Context) error
}

// LaunchOptions configures one engine instance.
type LaunchOptions struct {
	Kind     Kind
	Headless bool
}

// TargetOptions configures a new browsing context + page.
type TargetOptions struct {
	Viewport  models.Viewport
	TimeoutMs float64 // default timeout applied to every page action

	// Stealth injects an anti-automation-detection init script into the
	// context before any navigation.
	Stealth bool

	// BlockedResources aborts requests by resource type ("image",
	// "stylesheet", "font", "media", "script"). Empty means block nothing.
	BlockedResources []string
}

// NavigateOptions configures a navigation.
type NavigateOptions struct {
	WaitUntil string  // "load" (default), "domcontentloaded", "networkidle" or "commit"
	TimeoutMs float64 // 0 = target default
}

// ClickOptions configures a click action.
type ClickOptions struct {
	Button     string // "left" (default), "right" or "middle"
	ClickCount int
	Force      bool
	TimeoutMs  float64
}

// FillOptions configures a fill action.
type FillOptions struct {
	TimeoutMs float64
}

// WaitOptions configures a wait-for-selector action.
type WaitOptions struct {
	State     string // "visible" (default), "attached", "detached" or "hidden"
	TimeoutMs float64
}

// ScreenshotOptions configures a screenshot capture.
type ScreenshotOptions struct {
	FullPage bool
	Format   string // "png" (default) or "jpeg"
	Quality  int    // jpeg only, 0 = engine default
}
