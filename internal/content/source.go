package content

import (
	"errors"
	"strings"

	"github.com/abadojack/whatlanggo"
)

// ErrNoSource indicates that no supplied draft has a usable title, so there
// is nothing to translate from.
var ErrNoSource = errors.New("no translation draft with a usable title")

// PickSource selects the language to translate from by scanning the fixed
// priority order. A draft is eligible only if its title is non-empty.
func PickSource(drafts map[Language]Draft) (Language, Draft, error) {
	for _, lang := range SourcePriority {
		if draft, ok := drafts[lang]; ok && draft.HasTitle() {
			return lang, draft, nil
		}
	}
	return "", Draft{}, ErrNoSource
}

// DetectLanguage guesses the language of a draft from its title and content.
// Returns false when detection is inconclusive or the detected language is
// outside the supported set.
func DetectLanguage(d Draft) (Language, bool) {
	sample := strings.TrimSpace(d.Title + "\n" + d.Description + "\n" + d.Content)
	if sample == "" {
		return "", false
	}
	detected := Language(whatlanggo.DetectLang(sample).Iso6391())
	if !detected.Valid() {
		return "", false
	}
	return detected, true
}
