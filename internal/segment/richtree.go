package segment

import (
	"encoding/json"
	"strings"
)

// richTreeDocument holds the decoded rich-text JSON tree. A node is either
// {"type":"text","text":...}, a container with a "content" list of child
// nodes, or a list of nodes. Text-typed nodes with non-empty trimmed text
// are the units, in pre-order.
type richTreeDocument struct {
	root any
}

// parseRichTree attempts to decode a value against the rich-tree schema.
// Accepts an object carrying a "type" marker or a list of nodes; anything
// else (including valid JSON scalars) is not a rich tree.
func parseRichTree(value string) (*richTreeDocument, bool) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}

	var root any
	if err := json.Unmarshal([]byte(trimmed), &root); err != nil {
		return nil, false
	}

	switch node := root.(type) {
	case map[string]any:
		if _, ok := node["type"].(string); !ok {
			return nil, false
		}
	case []any:
	default:
		return nil, false
	}

	return &richTreeDocument{root: root}, true
}

func (d *richTreeDocument) Kind() Kind { return KindRichTree }

func (d *richTreeDocument) Flatten() []string {
	var units []string
	walkRichTree(d.root, func(node map[string]any, text string) string {
		units = append(units, text)
		return text
	})
	return units
}

func (d *richTreeDocument) Rebuild(translated []string) string {
	index := 0
	walkRichTree(d.root, func(node map[string]any, text string) string {
		if index >= len(translated) {
			return text
		}
		next := translated[index]
		index++
		return next
	})

	encoded, err := json.Marshal(d.root)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// walkRichTree visits text-typed nodes in pre-order. visit receives the
// node and its trimmed text and returns the replacement text; whitespace-only
// leaves are skipped and never visited.
func walkRichTree(node any, visit func(node map[string]any, text string) string) {
	switch n := node.(type) {
	case map[string]any:
		if typ, _ := n["type"].(string); typ == "text" {
			if text, _ := n["text"].(string); strings.TrimSpace(text) != "" {
				n["text"] = visit(n, strings.TrimSpace(text))
			}
		}
		if children, ok := n["content"].([]any); ok {
			for _, child := range children {
				walkRichTree(child, visit)
			}
		}
	case []any:
		for _, item := range n {
			walkRichTree(item, visit)
		}
	}
}
