package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/polyglot-cms/internal/chunk"
	"github.com/MimeLyc/polyglot-cms/internal/content"
)

// fakeChatClient scripts backend behavior per call.
type fakeChatClient struct {
	calls   int
	prompts []string
	respond func(call int, prompt string) (string, error)
}

func (f *fakeChatClient) SimpleChat(_ context.Context, prompt string, _ string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.respond(f.calls, prompt)
}

func echoClient() *fakeChatClient {
	return &fakeChatClient{respond: func(_ int, prompt string) (string, error) {
		// Echo the last line, which is the text payload of the prompt.
		lines := strings.Split(strings.TrimSpace(prompt), "\n")
		return "T:" + lines[len(lines)-1], nil
	}}
}

func TestTranslate_SameLanguageSkipsBackend(t *testing.T) {
	client := echoClient()
	tr := New(client)

	got, err := tr.Translate(context.Background(), "hello", content.LangEN, content.LangEN)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Zero(t, client.calls)
}

func TestTranslate_EmptyTextSkipsBackend(t *testing.T) {
	client := echoClient()
	tr := New(client)

	got, err := tr.Translate(context.Background(), "   ", content.LangZH, content.LangEN)
	require.NoError(t, err)
	assert.Equal(t, "   ", got)
	assert.Zero(t, client.calls)
}

func TestTranslate_RetriesWithLinearBackoff(t *testing.T) {
	client := &fakeChatClient{respond: func(call int, _ string) (string, error) {
		if call < 3 {
			return "", errors.New("backend down")
		}
		return "translated", nil
	}}

	var slept []time.Duration
	tr := New(client,
		WithRetryBase(10*time.Millisecond),
		withSleep(func(d time.Duration) { slept = append(slept, d) }),
	)

	got, err := tr.Translate(context.Background(), "hello", content.LangZH, content.LangEN)
	require.NoError(t, err)
	assert.Equal(t, "translated", got)
	assert.Equal(t, 3, client.calls)
	// Attempt i sleeps i times the base.
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, slept)
}

func TestTranslate_BackendErrorAfterExhaustion(t *testing.T) {
	client := &fakeChatClient{respond: func(_ int, _ string) (string, error) {
		return "", errors.New("backend down")
	}}
	tr := New(client, withSleep(func(time.Duration) {}))

	_, err := tr.Translate(context.Background(), "hello", content.LangZH, content.LangEN)
	require.Error(t, err)

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, content.LangZH, backendErr.Source)
	assert.Equal(t, content.LangEN, backendErr.Target)
	assert.Equal(t, 3, backendErr.Attempts)
	assert.Equal(t, 3, client.calls)
}

func TestCleanResponse(t *testing.T) {
	assert.Equal(t, "plain", CleanResponse("plain"))
	assert.Equal(t, "<p>hi</p>", CleanResponse("```html\n<p>hi</p>\n```"))
	assert.Equal(t, "text", CleanResponse("```\ntext\n```  "))
	assert.Equal(t, "", CleanResponse(""))
}

func TestCleanResponse_Idempotent(t *testing.T) {
	inputs := []string{"plain", "```html\n<p>hi</p>\n```", "  padded  "}
	for _, in := range inputs {
		once := CleanResponse(in)
		assert.Equal(t, once, CleanResponse(once))
	}
}

func TestTranslateDocument_PlainTextSingleCall(t *testing.T) {
	client := echoClient()
	tr := New(client)

	got, err := tr.TranslateDocument(context.Background(), "hello world", content.LangEN, content.LangJA)
	require.NoError(t, err)
	assert.Equal(t, "T:hello world", got)
	assert.Equal(t, 1, client.calls)
}

func TestTranslateDocument_CombineMode(t *testing.T) {
	client := &fakeChatClient{respond: func(_ int, prompt string) (string, error) {
		// Translate each segment of the combined payload.
		payload := prompt[strings.Index(prompt, "\n\n")+2:]
		segments := strings.Split(payload, chunk.Separator)
		for i, s := range segments {
			segments[i] = "T:" + s
		}
		return strings.Join(segments, chunk.Separator), nil
	}}
	tr := New(client)

	got, err := tr.TranslateDocument(context.Background(), "<p>Hello <b>world</b></p>", content.LangEN, content.LangZH)
	require.NoError(t, err)
	assert.Equal(t, "<p>T:Hello <b>T:world</b></p>", got)
	assert.Equal(t, 1, client.calls, "small unit sets go through one combined call")
}

func TestTranslateDocument_CombineMismatchFallsBackPerUnit(t *testing.T) {
	client := &fakeChatClient{respond: func(call int, prompt string) (string, error) {
		if call == 1 {
			// Combined response with the separators eaten by the backend.
			return "everything merged into one segment", nil
		}
		lines := strings.Split(strings.TrimSpace(prompt), "\n")
		return "T:" + lines[len(lines)-1], nil
	}}
	tr := New(client)

	got, err := tr.TranslateDocument(context.Background(), "<p>Hello <b>world</b></p>", content.LangEN, content.LangZH)
	require.NoError(t, err)
	assert.Equal(t, "<p>T:Hello <b>T:world</b></p>", got)
	assert.Equal(t, 3, client.calls, "one combined attempt plus one call per unit")
}

func TestTranslateDocument_FailedUnitKeepsOriginal(t *testing.T) {
	client := &fakeChatClient{respond: func(_ int, prompt string) (string, error) {
		if strings.Contains(prompt, "Hello") {
			return "", errors.New("backend down")
		}
		lines := strings.Split(strings.TrimSpace(prompt), "\n")
		return "T:" + lines[len(lines)-1], nil
	}}
	// Combine threshold of 1 forces per-unit mode.
	tr := New(client, WithChunking(3000, 1), withSleep(func(time.Duration) {}))

	got, err := tr.TranslateDocument(context.Background(), "<p>Hello <b>world</b></p>", content.LangEN, content.LangZH)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello <b>T:world</b></p>", got)
}

func TestTranslateText_ChunksOversizedInput(t *testing.T) {
	client := &fakeChatClient{respond: func(call int, _ string) (string, error) {
		return fmt.Sprintf("part%d", call), nil
	}}
	tr := New(client, WithChunking(50, 1500))

	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40)
	got, err := tr.TranslateText(context.Background(), text, content.LangEN, content.LangZH)
	require.NoError(t, err)
	assert.Equal(t, "part1\n\npart2", got)
	assert.Equal(t, 2, client.calls)
}

func TestBuildPrompt_HTMLGetsTagInstructions(t *testing.T) {
	prompt := buildPrompt("<p>hi</p>", content.LangZH, content.LangEN)
	assert.Contains(t, prompt, "Keep all HTML tags unchanged")
	assert.Contains(t, prompt, "Chinese")
	assert.Contains(t, prompt, "English")

	plain := buildPrompt("hi", content.LangZH, content.LangEN)
	assert.NotContains(t, plain, "HTML")
}
