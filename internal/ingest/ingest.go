// Package ingest normalizes raw submissions before fact extraction.
// Submissions arrive from web forms and email gateways and are frequently
// HTML; collaborator prompts want plain text.
package ingest

import (
	"strings"

	"golang.org/x/net/html"
)

// maxInputLen bounds what goes into a collaborator prompt
const maxInputLen = 8000

// NormalizeText returns a plain-text rendition of the raw submission:
// HTML is reduced to its visible text, whitespace collapsed, length capped
func NormalizeText(raw string) string {
	text := raw
	if looksLikeHTML(raw) {
		if extracted, ok := extractVisibleText(raw); ok {
			text = extracted
		}
	}

	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxInputLen {
		text = text[:maxInputLen]
	}
	return text
}

func looksLikeHTML(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "<") {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, tag := range []string{"<html", "<!doctype", "<body", "<div", "<p", "<br", "<table", "<span"} {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

// extractVisibleText walks the parsed document collecting text nodes,
// skipping script/style subtrees
func extractVisibleText(raw string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", false
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	out := strings.TrimSpace(buf.String())
	return out, out != ""
}
