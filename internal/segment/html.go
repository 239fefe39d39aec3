package segment

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlDocument holds a parsed HTML fragment. Text-bearing leaf nodes are
// the units, in document order; tags and attributes carry no unit and are
// rendered back untouched.
type htmlDocument struct {
	fragments []*html.Node
	textNodes []*html.Node
}

func parseHTML(value string) (*htmlDocument, error) {
	body := &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}
	fragments, err := html.ParseFragment(strings.NewReader(value), body)
	if err != nil {
		return nil, err
	}

	doc := &htmlDocument{fragments: fragments}
	for _, node := range fragments {
		doc.collectTextNodes(node)
	}
	return doc, nil
}

func (d *htmlDocument) collectTextNodes(node *html.Node) {
	if node.Type == html.TextNode {
		if strings.TrimSpace(node.Data) != "" {
			d.textNodes = append(d.textNodes, node)
		}
		return
	}
	// Script and style bodies are text nodes too, but they are code, not
	// prose. They stay untouched.
	if node.Type == html.ElementNode && (node.DataAtom == atom.Script || node.DataAtom == atom.Style) {
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		d.collectTextNodes(child)
	}
}

func (d *htmlDocument) Kind() Kind { return KindHTML }

func (d *htmlDocument) Flatten() []string {
	units := make([]string, 0, len(d.textNodes))
	for _, node := range d.textNodes {
		units = append(units, strings.TrimSpace(node.Data))
	}
	return units
}

// Rebuild substitutes each text node with its translated counterpart,
// keeping the node's surrounding whitespace so inline spacing survives.
func (d *htmlDocument) Rebuild(translated []string) string {
	for i, node := range d.textNodes {
		if i >= len(translated) {
			break
		}
		trimmed := strings.TrimSpace(node.Data)
		prefix, suffix := surroundingSpace(node.Data, trimmed)
		node.Data = prefix + translated[i] + suffix
	}

	var sb strings.Builder
	for _, node := range d.fragments {
		_ = html.Render(&sb, node)
	}
	return sb.String()
}

func surroundingSpace(raw, trimmed string) (string, string) {
	start := strings.Index(raw, trimmed)
	if start < 0 {
		return "", ""
	}
	return raw[:start], raw[start+len(trimmed):]
}
