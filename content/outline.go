package content

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// OutlineItem is one entry in a page snapshot: a heading or an interactive
// element, with a stable ref the caller can mention and a best-effort locator
// usable in follow-up click/fill calls.
type OutlineItem struct {
	Ref     string `json:"ref"`
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Locator string `json:"locator,omitempty"`
}

const (
	maxOutlineName = 80
	// DefaultOutlineLimit caps snapshot size when the caller does not.
	DefaultOutlineLimit = 120
)

// Outline walks rendered HTML and lists its headings and interactive
// elements (links, buttons, form fields) in document order, at most limit
// entries. It is a structural snapshot for driving the page, not an
// accessibility tree.
func Outline(rawHTML string, limit int) []OutlineItem {
	if limit <= 0 {
		limit = DefaultOutlineLimit
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	items := make([]OutlineItem, 0, 32)
	doc.Find("h1, h2, h3, a[href], button, input, select, textarea").
		EachWithBreak(func(i int, s *goquery.Selection) bool {
			if len(items) >= limit {
				return false
			}
			role := elementRole(s)
			if role == "" {
				return true
			}
			items = append(items, OutlineItem{
				Ref:     fmt.Sprintf("e%d", len(items)+1),
				Role:    role,
				Name:    elementName(s),
				Locator: elementLocator(s, role),
			})
			return true
		})
	return items
}

// elementRole maps an element to a coarse role. An explicit role attribute
// wins; hidden inputs are skipped.
func elementRole(s *goquery.Selection) string {
	if role, ok := s.Attr("role"); ok && role != "" {
		return role
	}
	switch goquery.NodeName(s) {
	case "h1", "h2", "h3":
		return "heading"
	case "a":
		return "link"
	case "button":
		return "button"
	case "select":
		return "combobox"
	case "textarea":
		return "textbox"
	case "input":
		switch typ, _ := s.Attr("type"); typ {
		case "hidden":
			return ""
		case "button", "submit", "reset", "image":
			return "button"
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		default:
			return "textbox"
		}
	}
	return ""
}

// elementName picks the most descriptive label available.
func elementName(s *goquery.Selection) string {
	for _, attr := range []string{"aria-label", "placeholder", "alt", "title"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return clipName(v)
		}
	}
	if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
		return clipName(text)
	}
	if v, ok := s.Attr("value"); ok {
		return clipName(v)
	}
	return ""
}

// elementLocator builds a selector for follow-up operations: an id when the
// element has one, a name-attribute selector for form fields, a text locator
// for links and buttons, otherwise nothing.
func elementLocator(s *goquery.Selection, role string) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	if name, ok := s.Attr("name"); ok && name != "" {
		return fmt.Sprintf("%s[name=%q]", goquery.NodeName(s), name)
	}
	if role == "link" || role == "button" {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			return fmt.Sprintf("text=%s", clipName(text))
		}
	}
	return ""
}

func clipName(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxOutlineName {
		return s
	}
	return string(runes[:maxOutlineName])
}
