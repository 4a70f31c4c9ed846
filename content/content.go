// Package content turns rendered page HTML into the shapes the tool layer
// hands back to callers: markdown or plain text via a two-stage pipeline
// (main-content extraction, then format conversion), and an interactive
// element outline for page snapshots.
package content

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/browserd/models"
)

// Pipeline converts rendered HTML into caller-facing content. The markdown
// converter is built once and is safe for concurrent use.
type Pipeline struct {
	md *converter.Converter
}

// NewPipeline builds a Pipeline with a pre-configured markdown converter.
func NewPipeline() *Pipeline {
	return &Pipeline{md: newMarkdownConverter()}
}

// ExtractOptions control one extraction. Zero values mean markdown output,
// readability extraction, no selector filter and no length cap.
type ExtractOptions struct {
	Format    string // "markdown" (default), "text" or "html"
	Mode      string // "readability" (default) or "raw"
	Selector  string // optional CSS selector applied before extraction
	MaxLength int    // rune cap on Content, 0 = unlimited
}

// Result is the outcome of one extraction.
type Result struct {
	Content        string
	Format         string
	Title          string
	Excerpt        string
	SiteName       string
	Truncated      bool
	OriginalTokens int
	ContentTokens  int
}

// Extract runs the pipeline over rendered HTML.
//
// Flow:
//  1. Estimate tokens in the raw HTML.
//  2. Narrow to the configured CSS selector, if any.
//  3. Extract main content (readability with raw fallback, or raw).
//  4. Convert to the requested format.
//  5. Apply the length cap.
func (p *Pipeline) Extract(rawHTML, sourceURL string, opts ExtractOptions) (*Result, error) {
	// ── 1. Original token estimate ───────────────────────────────────────
	originalTokens := EstimateTokens(rawHTML)

	// ── 2. CSS selector filter ───────────────────────────────────────────
	html := rawHTML
	if opts.Selector != "" {
		filtered, err := selectByCSS(html, opts.Selector)
		if err != nil {
			return nil, models.NewPoolError(models.ErrCodeInvalidInput,
				fmt.Sprintf("invalid css selector %q", opts.Selector), err)
		}
		html = filtered
	}

	// ── 3. Main-content extraction ───────────────────────────────────────
	var article readability.Article
	switch opts.Mode {
	case "", "readability":
		article, _ = mainContent(html, sourceURL)
	case "raw":
		article = rawArticle(html)
	default:
		return nil, models.NewPoolError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown extraction mode %q (want readability or raw)", opts.Mode), nil)
	}

	// ── 4. Format conversion ─────────────────────────────────────────────
	var (
		body string
		err  error
	)
	format := opts.Format
	if format == "" {
		format = "markdown"
	}
	switch format {
	case "markdown":
		body, err = toMarkdown(p.md, article.Content, sourceURL)
		if err != nil {
			return nil, models.NewPoolError(models.ErrCodeOperationFailed, "markdown conversion failed", err)
		}
	case "html":
		body = article.Content
	case "text":
		body = strings.TrimSpace(article.TextContent)
		if body == "" {
			body = plainText(article.Content)
		}
	default:
		return nil, models.NewPoolError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown format %q (want markdown, text or html)", format), nil)
	}

	// ── 5. Length cap ────────────────────────────────────────────────────
	body, truncated := truncateRunes(body, opts.MaxLength)

	return &Result{
		Content:        body,
		Format:         format,
		Title:          article.Title,
		Excerpt:        article.Excerpt,
		SiteName:       article.SiteName,
		Truncated:      truncated,
		OriginalTokens: originalTokens,
		ContentTokens:  EstimateTokens(body),
	}, nil
}

// truncateRunes caps s at max runes, cutting at the last line break within
// the cap when one is reasonably close so markdown structure survives.
func truncateRunes(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s, false
	}
	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, '\n'); i > max/2 {
		cut = cut[:i]
	}
	return cut, true
}
