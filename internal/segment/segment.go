// Package segment decomposes content values into translatable text units
// and reassembles translated units back into the original structure.
//
// Three content shapes are supported: plain text, HTML markup and the rich
// JSON tree produced by the editor (a node is either {"type":"text"} or a
// container with a "content" list). The shape is picked by Classify.
package segment

import (
	"regexp"
	"strings"
)

// Kind identifies the structural shape of a content value.
type Kind int

const (
	KindPlainText Kind = iota
	KindHTML
	KindRichTree
)

func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindRichTree:
		return "richtree"
	default:
		return "plaintext"
	}
}

// Document is a parsed content value. Flatten lists the translatable units
// in traversal order; Rebuild substitutes translated units positionally and
// re-serializes. Positions beyond the translated list keep the original
// text, so a short list never drops content.
type Document interface {
	Kind() Kind
	Flatten() []string
	Rebuild(translated []string) string
}

// Tag-shaped only: a bare "<" followed by whitespace or a digit is prose,
// not markup.
var markupRE = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// ContainsMarkup reports whether the value carries HTML tags.
func ContainsMarkup(value string) bool {
	return markupRE.MatchString(value)
}

// Classify picks the structural shape of a value: rich-tree JSON if it
// parses against the editor schema, HTML if it carries markup, plain text
// otherwise.
func Classify(value string) Kind {
	if _, ok := parseRichTree(value); ok {
		return KindRichTree
	}
	if ContainsMarkup(value) {
		return KindHTML
	}
	return KindPlainText
}

// Parse classifies and parses a value into a Document. A value that fails
// to parse as the rich-tree schema falls back to the HTML path if it has
// markup, else the plain-text path.
func Parse(value string) Document {
	switch Classify(value) {
	case KindRichTree:
		doc, _ := parseRichTree(value)
		return doc
	case KindHTML:
		if doc, err := parseHTML(value); err == nil {
			return doc
		}
		return plainDocument{text: value}
	default:
		return plainDocument{text: value}
	}
}

// plainDocument treats the whole string as a single unit. Subdivision of
// long plain text is the chunker's job, not the segmenter's.
type plainDocument struct {
	text string
}

func (plainDocument) Kind() Kind { return KindPlainText }

func (d plainDocument) Flatten() []string {
	if strings.TrimSpace(d.text) == "" {
		return nil
	}
	return []string{d.text}
}

func (d plainDocument) Rebuild(translated []string) string {
	if len(translated) == 0 || strings.TrimSpace(d.text) == "" {
		return d.text
	}
	return translated[0]
}
