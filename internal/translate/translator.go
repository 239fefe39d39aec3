// Package translate turns source-language text into target-language text
// through a chat-completions backend: prompt construction, response cleanup,
// bounded retry with linear backoff, and the segment/chunk/reassemble
// pipeline for structured content.
package translate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/MimeLyc/polyglot-cms/internal/chunk"
	"github.com/MimeLyc/polyglot-cms/internal/content"
	"github.com/MimeLyc/polyglot-cms/internal/segment"
	"github.com/MimeLyc/polyglot-cms/pkg/log"
)

const systemPrompt = "You are a professional translator. Translate accurately and naturally while preserving the original format. Only return the translation, without code fences or any other additions."

// ChatClient is the backend surface the translator needs. *llm.Client
// satisfies it.
type ChatClient interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// Translator translates text and structured content between the supported
// languages. Safe for concurrent use.
type Translator struct {
	client           ChatClient
	maxRetries       int
	retryBase        time.Duration
	combineThreshold int
	maxChunkSize     int
	sleep            func(time.Duration)
}

// Option configures a Translator.
type Option func(*Translator)

// WithMaxRetries sets the attempt budget per translation call.
func WithMaxRetries(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.maxRetries = n
		}
	}
}

// WithRetryBase sets the backoff unit; attempt i sleeps i × base.
func WithRetryBase(d time.Duration) Option {
	return func(t *Translator) {
		if d > 0 {
			t.retryBase = d
		}
	}
}

// WithChunking sets the per-call size budget and the combine-mode threshold.
func WithChunking(maxChunkSize, combineThreshold int) Option {
	return func(t *Translator) {
		if maxChunkSize > 0 {
			t.maxChunkSize = maxChunkSize
		}
		if combineThreshold > 0 {
			t.combineThreshold = combineThreshold
		}
	}
}

func withSleep(fn func(time.Duration)) Option {
	return func(t *Translator) {
		t.sleep = fn
	}
}

// New creates a Translator with the default retry and chunking policy
// (3 attempts, 2s backoff unit, 3000-char chunks, 1500-char combine
// threshold).
func New(client ChatClient, opts ...Option) *Translator {
	t := &Translator{
		client:           client,
		maxRetries:       3,
		retryBase:        2 * time.Second,
		combineThreshold: 1500,
		maxChunkSize:     3000,
		sleep:            time.Sleep,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate translates one text value. Fails closed to the input when the
// language pair is trivial or the text is empty: no backend call is made.
// After exhausting retries it returns a *BackendError naming the pair.
func (t *Translator) Translate(ctx context.Context, text string, source, target content.Language) (string, error) {
	if source == target || strings.TrimSpace(text) == "" {
		return text, nil
	}
	return t.call(ctx, buildPrompt(text, source, target), source, target)
}

// call runs one prompt through the backend with the retry/backoff policy.
func (t *Translator) call(ctx context.Context, prompt string, source, target content.Language) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		result, err := t.client.SimpleChat(ctx, prompt, systemPrompt)
		if err == nil {
			return CleanResponse(result), nil
		}
		lastErr = err

		if attempt < t.maxRetries {
			backoff := time.Duration(attempt) * t.retryBase
			log.Warn("Translation %s -> %s attempt %d/%d failed, retrying in %v: %v",
				source, target, attempt, t.maxRetries, backoff, err)
			t.sleep(backoff)
		}
	}

	return "", &BackendError{
		Source:   source,
		Target:   target,
		Attempts: t.maxRetries,
		Err:      lastErr,
	}
}

// TranslateDocument translates a structured content value (plain text,
// HTML, or the rich JSON tree) and reassembles the result into the same
// structural shape.
//
// HTML and rich-tree values are segmented into text units: small unit sets
// go through combine mode (one call, separator-joined), everything else is
// translated per unit where a single failed unit keeps its original text
// and never aborts the rest. Oversized plain values are split on paragraph
// boundaries and rejoined.
func (t *Translator) TranslateDocument(ctx context.Context, value string, source, target content.Language) (string, error) {
	if source == target || strings.TrimSpace(value) == "" {
		return value, nil
	}

	doc := segment.Parse(value)
	switch doc.Kind() {
	case segment.KindPlainText:
		return t.translateFlat(ctx, value, source, target, false)
	default:
		units := doc.Flatten()
		if len(units) == 0 {
			return value, nil
		}
		translated := t.translateUnits(ctx, units, source, target)
		return doc.Rebuild(translated), nil
	}
}

// TranslateText translates a flat value without structural segmentation,
// splitting oversized input on paragraph boundaries. Rejoining follows the
// content shape: HTML chunks are concatenated, plain-text chunks are joined
// with paragraph breaks.
func (t *Translator) TranslateText(ctx context.Context, text string, source, target content.Language) (string, error) {
	if source == target || strings.TrimSpace(text) == "" {
		return text, nil
	}
	return t.translateFlat(ctx, text, source, target, segment.ContainsMarkup(text))
}

// translateFlat handles an unstructured blob, splitting it into chunks when
// it exceeds the per-call budget.
func (t *Translator) translateFlat(ctx context.Context, text string, source, target content.Language, htmlContent bool) (string, error) {
	if len(text) <= t.maxChunkSize {
		return t.call(ctx, buildPrompt(text, source, target), source, target)
	}

	chunks := chunk.SplitText(text, t.maxChunkSize)
	log.Info("Text length %d exceeds chunk budget, split into %d chunks", len(text), len(chunks))

	translated := make([]string, 0, len(chunks))
	for _, c := range chunks {
		result, err := t.call(ctx, buildPrompt(c, source, target), source, target)
		if err != nil {
			return "", err
		}
		translated = append(translated, result)
	}
	return chunk.Join(translated, htmlContent), nil
}

// translateUnits translates a flat unit list, combine mode first when its
// preconditions hold, per-unit otherwise. Always returns len(units)
// results; failed units carry their original text.
func (t *Translator) translateUnits(ctx context.Context, units []string, source, target content.Language) []string {
	if chunk.CanCombine(units, t.combineThreshold) {
		if translated, ok := t.translateCombined(ctx, units, source, target); ok {
			return translated
		}
		log.Warn("Combine-mode translation %s -> %s misaligned, falling back to per-unit calls", source, target)
	}

	translated := make([]string, len(units))
	for i, unit := range units {
		result, err := t.translateFlat(ctx, unit, source, target, false)
		if err != nil {
			log.Error("Unit translation %s -> %s failed, keeping original text: %v", source, target, err)
			translated[i] = unit
			continue
		}
		translated[i] = result
	}
	return translated
}

// translateCombined joins all units into one call and splits the response
// on the separator. ok=false on any failure or segment-count mismatch.
func (t *Translator) translateCombined(ctx context.Context, units []string, source, target content.Language) ([]string, bool) {
	prompt := buildCombinedPrompt(chunk.Combine(units), source, target)
	result, err := t.call(ctx, prompt, source, target)
	if err != nil {
		return nil, false
	}

	translated, ok := chunk.SplitCombined(result, len(units))
	if !ok {
		return nil, false
	}
	return translated, true
}

// buildPrompt builds a language-pair-aware prompt. HTML content gets
// explicit tag-preservation instructions.
func buildPrompt(text string, source, target content.Language) string {
	if segment.ContainsMarkup(text) {
		return fmt.Sprintf(`Translate the following HTML content from %s to %s.
IMPORTANT:
- Keep all HTML tags unchanged
- Only translate the text content between tags
- Preserve the HTML structure exactly
- Do not add any explanations or additional text

HTML to translate:
%s`, source.DisplayName(), target.DisplayName(), text)
	}

	return fmt.Sprintf(`Translate the following text from %s to %s.
Only return the translated text, without any explanations or additional information.

Text to translate:
%s`, source.DisplayName(), target.DisplayName(), text)
}

func buildCombinedPrompt(combined string, source, target content.Language) string {
	return fmt.Sprintf(`Translate the following %s text segments to %s.
Keep every ###SPLIT### separator exactly where it is and do not change the number of segments.
Only return the translated segments.

%s`, source.DisplayName(), target.DisplayName(), combined)
}

var (
	fenceOpenRE  = regexp.MustCompile("(?m)^```[a-zA-Z]*[ \t]*\n")
	fenceCloseRE = regexp.MustCompile("(?m)\n```[ \t]*$")
)

// CleanResponse strips incidental code-fence wrapping and surrounding
// whitespace from a backend response. Idempotent: cleaning an already-clean
// string is a no-op.
func CleanResponse(text string) string {
	if text == "" {
		return text
	}
	text = fenceOpenRE.ReplaceAllString(text, "")
	text = fenceCloseRE.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
