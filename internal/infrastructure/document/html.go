package document

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var skippedTags = []string{
	"script", "style", "noscript", "svg", "iframe",
	"link", "meta", "head", "title", "nav", "footer",
}

var blockTags = []string{
	"p", "div", "section", "article", "br", "li", "tr",
	"h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre", "figcaption",
}

var blankLines = regexp.MustCompile(`\n{3,}`)

func htmlToText(raw string) (string, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	root := findBodyNode(doc)
	if root == nil {
		root = doc
	}

	var sb strings.Builder
	collectText(root, &sb)

	lines := strings.Split(sb.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text), nil
}

func findBodyNode(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBodyNode(c); b != nil {
			return b
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if isOneOf(n.Data, skippedTags...) {
			return
		}
	}

	block := n.Type == html.ElementNode && isOneOf(n.Data, blockTags...)
	if block {
		sb.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
	if block {
		sb.WriteString("\n")
	}
}

func isOneOf(s string, candidates ...string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
