package classroom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// fragmentText returns the text nodes of an HTML fragment joined by single
// spaces and trimmed. Whitespace-only nodes are kept.
func fragmentText(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	var parts []string
	for _, n := range nodes {
		collectText(n, &parts)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// nodeText returns the text nodes below n joined by single spaces, trimmed
func nodeText(n *html.Node) string {
	var parts []string
	collectText(n, &parts)
	return strings.TrimSpace(strings.Join(parts, " "))
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		*parts = append(*parts, n.Data)
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
