// Package chunk groups translatable units and splits oversized text so a
// single translation call stays under the backend size budget.
package chunk

import (
	"regexp"
	"strings"
)

// Separator joins units for combine-mode translation. The backend is
// instructed to echo it between translated segments; SplitCombined verifies
// the echo survived.
const Separator = "\n###SPLIT###\n"

// separatorToken is the bare token without the newline framing, used for
// the tolerant second split pass and for source-content checks.
const separatorToken = "###SPLIT###"

// CanCombine reports whether units may be joined into one translation call:
// their total size must stay under threshold and no unit may already contain
// the separator token, otherwise the split-back would misalign.
func CanCombine(units []string, threshold int) bool {
	if len(units) == 0 {
		return false
	}
	total := 0
	for _, unit := range units {
		if strings.Contains(unit, separatorToken) {
			return false
		}
		total += len(unit)
	}
	return total < threshold
}

// Combine joins units with the separator for a single translation call.
func Combine(units []string) string {
	return strings.Join(units, Separator)
}

// SplitCombined recovers per-unit translations from a combined response.
// Returns ok=false when the recovered segment count does not match want;
// callers must then fall back to per-unit translation rather than trust a
// misaligned split.
func SplitCombined(translated string, want int) ([]string, bool) {
	segments := strings.Split(translated, Separator)
	if len(segments) == want {
		return segments, true
	}

	// Backends sometimes collapse the newline framing around the token.
	segments = strings.Split(translated, separatorToken)
	if len(segments) != want {
		return nil, false
	}
	for i, segment := range segments {
		segments[i] = strings.TrimSpace(segment)
	}
	return segments, true
}

// paragraphRE matches paragraph boundaries: blank lines or block-level
// HTML markers.
var paragraphRE = regexp.MustCompile(`\n\n+|</p>|<br\s*/?>|<div>`)

// SplitText splits one long flat string into chunks of at most maxSize
// characters, preferring paragraph boundaries. A single paragraph exceeding
// maxSize is hard-cut at the character boundary and the remainder starts
// the next chunk; mid-word cuts are an accepted lossy edge case.
func SplitText(text string, maxSize int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	var current string

	for _, paragraph := range paragraphRE.Split(text, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		// The +2 accounts for the "\n\n" joiner between paragraphs.
		if current != "" && len(current)+2+len(paragraph) > maxSize {
			chunks = append(chunks, current)
			current = ""
		}
		for len(paragraph) > maxSize {
			chunks = append(chunks, paragraph[:maxSize])
			paragraph = paragraph[maxSize:]
		}
		if paragraph == "" {
			continue
		}
		if current != "" {
			current += "\n\n"
		}
		current += paragraph
	}

	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// Join reassembles translated chunks: HTML chunks by direct concatenation,
// plain-text chunks by paragraph breaks.
func Join(chunks []string, htmlContent bool) string {
	if htmlContent {
		return strings.Join(chunks, "")
	}
	return strings.Join(chunks, "\n\n")
}
