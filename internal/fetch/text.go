package fetch

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// DocumentText extracts the visible text of a page: script, style and
// noscript content is dropped, every text node becomes a line, lines are
// further split on double spaces, and blank lines are removed.
func DocumentText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()

	var chunks []string
	for _, node := range doc.Selection.Nodes {
		chunks = collectText(node, chunks)
	}

	return normalizeLines(strings.Join(chunks, "\n"))
}

// readableText runs the main-content extractor over the raw page. Empty on failure.
func readableText(body []byte, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil || article.Node == nil {
		return ""
	}

	return normalizeLines(strings.Join(collectText(article.Node, nil), "\n"))
}

func collectText(node *html.Node, chunks []string) []string {
	switch node.Type {
	case html.TextNode:
		if text := strings.TrimSpace(node.Data); text != "" {
			chunks = append(chunks, text)
		}
		return chunks
	case html.CommentNode, html.DoctypeNode:
		return chunks
	case html.ElementNode:
		switch node.Data {
		case "script", "style", "noscript":
			return chunks
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		chunks = collectText(child, chunks)
	}
	return chunks
}

func normalizeLines(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				out = append(out, phrase)
			}
		}
	}
	return strings.Join(out, "\n")
}
