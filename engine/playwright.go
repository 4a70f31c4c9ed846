package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-rod/stealth"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightDriver runs browser engines through the Playwright runtime.
// One driver serves the whole process; browsers are launched per kind.
type PlaywrightDriver struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	install bool
}

// NewPlaywrightDriver creates a driver. When installOnStart is true, Start
// downloads the browser binaries before bringing up the runtime (first run
// on a fresh host); otherwise the binaries are assumed present.
func NewPlaywrightDriver(installOnStart bool) *PlaywrightDriver {
	return &PlaywrightDriver{install: installOnStart}
}

func (d *PlaywrightDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pw != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Playwright writes install progress to stdout, which would corrupt the
	// stdio protocol stream. Discard it.
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if d.install {
		if err := playwright.Install(runOpts); err != nil {
			return fmt.Errorf("install browsers: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("start playwright runtime: %w", err)
	}
	d.pw = pw
	return nil
}

func (d *PlaywrightDriver) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	d.mu.Lock()
	pw := d.pw
	d.mu.Unlock()
	if pw == nil {
		return nil, errors.New("engine: driver not started")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var browserType playwright.BrowserType
	switch opts.Kind {
	case KindFirefox:
		browserType = pw.Firefox
	case KindWebKit:
		browserType = pw.WebKit
	default:
		browserType = pw.Chromium
	}

	browser, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", opts.Kind, err)
	}

	return &pwBrowser{kind: opts.Kind, browser: browser}, nil
}

func (d *PlaywrightDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pw == nil {
		return nil
	}
	err := d.pw.Stop()
	d.pw = nil
	return err
}

// pwBrowser wraps one launched browser instance.
type pwBrowser struct {
	kind    Kind
	browser playwright.Browser
}

func (b *pwBrowser) Kind() Kind { return b.kind }

func (b *pwBrowser) NewTarget(ctx context.Context, opts TargetOptions) (Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browserCtx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}

	// The init script must be registered before the first page exists so
	// every document in the context gets it.
	if opts.Stealth {
		script := playwright.Script{Content: playwright.String(stealth.JS)}
		if err := browserCtx.AddInitScript(script); err != nil {
			_ = browserCtx.Close()
			return nil, fmt.Errorf("inject stealth script: %w", err)
		}
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}

	if opts.TimeoutMs > 0 {
		page.SetDefaultTimeout(opts.TimeoutMs)
	}

	if len(opts.BlockedResources) > 0 {
		if err := blockResources(page, opts.BlockedResources); err != nil {
			_ = page.Close()
			_ = browserCtx.Close()
			return nil, fmt.Errorf("install resource filter: %w", err)
		}
	}

	return &pwTarget{context: browserCtx, page: page}, nil
}

func (b *pwBrowser) Close() error {
	return b.browser.Close()
}

// blockResources aborts every request whose resource type is in the block
// list and lets everything else through.
func blockResources(page playwright.Page, types []string) error {
	blocked := make(map[string]struct{}, len(types))
	for _, t := range types {
		blocked[strings.ToLower(t)] = struct{}{}
	}
	return page.Route("**/*", func(route playwright.Route) {
		if _, drop := blocked[route.Request().ResourceType()]; drop {
			_ = route.Abort()
			return
		}
		_ = route.Continue()
	})
}

// pwTarget is one browsing context plus its single page.
type pwTarget struct {
	context playwright.BrowserContext
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

func (t *pwTarget) Navigate(ctx context.Context, url string, opts NavigateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	gotoOpts := playwright.PageGotoOptions{}
	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		gotoOpts.WaitUntil = &waitUntil
	}
	if opts.TimeoutMs > 0 {
		gotoOpts.Timeout = playwright.Float(opts.TimeoutMs)
	}
	if _, err := t.page.Goto(url, gotoOpts); err != nil {
		return "", fmt.Errorf("goto %s: %w", url, err)
	}
	return t.page.URL(), nil
}

func (t *pwTarget) Click(ctx context.Context, selector string, opts ClickOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clickOpts := playwright.PageClickOptions{}
	if opts.Button != "" {
		button := playwright.MouseButton(opts.Button)
		clickOpts.Button = &button
	}
	if opts.ClickCount > 0 {
		clickOpts.ClickCount = playwright.Int(opts.ClickCount)
	}
	if opts.Force {
		clickOpts.Force = playwright.Bool(true)
	}
	if opts.TimeoutMs > 0 {
		clickOpts.Timeout = playwright.Float(opts.TimeoutMs)
	}
	if err := t.page.Click(selector, clickOpts); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

func (t *pwTarget) Fill(ctx context.Context, selector, value string, opts FillOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fillOpts := playwright.PageFillOptions{}
	if opts.TimeoutMs > 0 {
		fillOpts.Timeout = playwright.Float(opts.TimeoutMs)
	}
	if err := t.page.Fill(selector, value, fillOpts); err != nil {
		return fmt.Errorf("fill %q: %w", selector, err)
	}
	return nil
}

func (t *pwTarget) WaitForSelector(ctx context.Context, selector string, opts WaitOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	waitOpts := playwright.PageWaitForSelectorOptions{}
	if opts.State != "" {
		state := playwright.WaitForSelectorState(opts.State)
		waitOpts.State = &state
	}
	if opts.TimeoutMs > 0 {
		waitOpts.Timeout = playwright.Float(opts.TimeoutMs)
	}
	if _, err := t.page.WaitForSelector(selector, waitOpts); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

func (t *pwTarget) Text(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if selector == "" {
		selector = "body"
	}
	text, err := t.page.TextContent(selector)
	if err != nil {
		return "", fmt.Errorf("text content of %q: %w", selector, err)
	}
	return text, nil
}

func (t *pwTarget) Attribute(ctx context.Context, selector, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	value, err := t.page.GetAttribute(selector, name)
	if err != nil {
		return "", fmt.Errorf("attribute %q of %q: %w", name, selector, err)
	}
	return value, nil
}

func (t *pwTarget) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title, err := t.page.Title()
	if err != nil {
		return "", fmt.Errorf("page title: %w", err)
	}
	return title, nil
}

func (t *pwTarget) URL() string {
	return t.page.URL()
}

func (t *pwTarget) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := t.page.Content()
	if err != nil {
		return "", fmt.Errorf("page content: %w", err)
	}
	return html, nil
}

func (t *pwTarget) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shotOpts := playwright.PageScreenshotOptions{}
	if opts.FullPage {
		shotOpts.FullPage = playwright.Bool(true)
	}
	if opts.Format == "jpeg" {
		shotOpts.Type = playwright.ScreenshotTypeJpeg
		if opts.Quality > 0 {
			shotOpts.Quality = playwright.Int(opts.Quality)
		}
	}
	data, err := t.page.Screenshot(shotOpts)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

func (t *pwTarget) Evaluate(ctx context.Context, expression string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := t.page.Evaluate(expression)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return result, nil
}

// Close releases the page, then the context. Already-closed resources are
// not an error: a crashed engine tears pages down on its own first.
func (t *pwTarget) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		var errs []error
		if err := t.page.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		if err := t.context.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
		t.closeErr = errors.Join(errs...)
	})
	return t.closeErr
}
