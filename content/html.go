package content

import (
	"bytes"
	"log/slog"
	nurl "net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// minContentLength is the smallest TextContent (in characters) readability
// output must have to be trusted. Below this the algorithm likely missed the
// main content and the raw HTML is used instead.
const minContentLength = 50

// mainContent runs the Mozilla Readability algorithm on rendered HTML. The
// second return reports whether extraction was used; on any failure (bad URL,
// extraction error, output too short) the raw HTML is returned so downstream
// conversion always has input.
func mainContent(rawHTML, sourceURL string) (readability.Article, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("readability: invalid source url, using raw html", "url", sourceURL, "error", err)
		return rawArticle(rawHTML), false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("readability: extraction failed, using raw html", "url", sourceURL, "error", err)
		return rawArticle(rawHTML), false
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		slog.Warn("readability: extracted content too short, using raw html",
			"url", sourceURL, "length", len(article.TextContent))
		return rawArticle(rawHTML), false
	}

	return article, true
}

// rawArticle wraps raw HTML into an Article so the pipeline proceeds
// uniformly whether or not readability ran.
func rawArticle(rawHTML string) readability.Article {
	return readability.Article{
		Content:     rawHTML,
		TextContent: plainText(rawHTML),
	}
}

// selectByCSS returns the concatenated outer HTML of every element matching
// the selector. No matches returns the input unchanged, so a too-narrow
// selector degrades to the whole page instead of empty output.
func selectByCSS(rawHTML, selector string) (string, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	matches := cascadia.QueryAll(doc, sel)
	if len(matches) == 0 {
		return rawHTML, nil
	}

	var buf bytes.Buffer
	for _, node := range matches {
		if err := html.Render(&buf, node); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// plainText extracts visible text from an HTML fragment.
func plainText(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}
	return strings.TrimSpace(doc.Text())
}

// EstimateTokens gives a fast token estimate without a tokenizer dependency.
// Rune count / 3 sits between English (~4 chars/token) and CJK (~1.5) and
// errs slightly high, which is the safe direction for context budgeting.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := n / 3
	if est < 1 {
		return 1
	}
	return est
}
