package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/polyglot-cms/internal/content"
	"github.com/MimeLyc/polyglot-cms/internal/jobs"
	"github.com/MimeLyc/polyglot-cms/internal/persistence"
	"github.com/MimeLyc/polyglot-cms/internal/service"
)

// staticTranslator prefixes text with the target language.
type staticTranslator struct{}

func (staticTranslator) translate(text string, target content.Language) (string, error) {
	if text == "" {
		return "", nil
	}
	return "[" + string(target) + "] " + text, nil
}

func (s staticTranslator) Translate(_ context.Context, text string, _, target content.Language) (string, error) {
	return s.translate(text, target)
}

func (s staticTranslator) TranslateText(_ context.Context, text string, _, target content.Language) (string, error) {
	return s.translate(text, target)
}

func (s staticTranslator) TranslateDocument(_ context.Context, value string, _, target content.Language) (string, error) {
	return s.translate(value, target)
}

func newTestServer(t *testing.T) (*Server, *jobs.Queue) {
	t.Helper()
	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	queue := jobs.NewQueue(1, store)
	orchestrator := service.NewOrchestrator(store, staticTranslator{}, queue)
	return NewServer(orchestrator, store, WithQueue(queue)), queue
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func createTestItem(t *testing.T, handler http.Handler) service.CreateResult {
	t.Helper()
	rec := postJSON(t, handler, "/api/contents", service.CreateRequest{
		Kind:           content.KindPost,
		Slug:           "hello-world",
		NeedAIGenerate: true,
		Translations: map[content.Language]content.Draft{
			content.LangZH: {Title: "标题", Content: "<p>正文</p>"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result service.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestCreateContent_FillsAllLanguages(t *testing.T) {
	server, _ := newTestServer(t)

	result := createTestItem(t, server.Handler())
	assert.Equal(t, "hello-world", result.Item.Slug)
	require.Len(t, result.Translations, 3)

	byLang := make(map[content.Language]content.Translation)
	for _, tr := range result.Translations {
		byLang[tr.Language] = tr
	}
	assert.False(t, byLang[content.LangZH].IsAIGenerated)
	assert.Equal(t, "[en] 标题", byLang[content.LangEN].Title)
	assert.True(t, byLang[content.LangJA].IsAIGenerated)
}

func TestCreateContent_BadRequests(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server.Handler(), "/api/contents", service.CreateRequest{
		Kind: "page",
		Translations: map[content.Language]content.Draft{
			content.LangZH: {Title: "标题"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, server.Handler(), "/api/contents", service.CreateRequest{
		Kind:         content.KindPost,
		Translations: map[content.Language]content.Draft{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/contents", bytes.NewReader([]byte("{broken")))
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetContent_ByID(t *testing.T) {
	server, _ := newTestServer(t)
	created := createTestItem(t, server.Handler())

	req := httptest.NewRequest(http.MethodGet, "/api/contents/"+created.Item.ID, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail contentDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, created.Item.ID, detail.Item.ID)
	assert.Len(t, detail.Translations, 3)

	req = httptest.NewRequest(http.MethodGet, "/api/contents/ghost", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListContents(t *testing.T) {
	server, _ := newTestServer(t)
	createTestItem(t, server.Handler())

	req := httptest.NewRequest(http.MethodGet, "/api/contents", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []content.ContentItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 1)
}

func TestUpdateContent_DispatchesBackgroundWork(t *testing.T) {
	server, queue := newTestServer(t)
	created := createTestItem(t, server.Handler())

	payload, err := json.Marshal(service.UpdateRequest{
		Translations: map[content.Language]content.Draft{
			content.LangZH: {Title: "新标题", Content: "<p>新正文</p>"},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/contents/"+created.Item.ID, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result service.UpdateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []content.Language{content.LangZH}, result.UpdatedLanguages)
	// en and ja were machine-generated at create time, both go stale.
	assert.Equal(t, 2, result.TasksDispatched)
	assert.Len(t, queue.List(), 2)
}

func TestUpdateContent_UnknownItem(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/contents/ghost", bytes.NewReader([]byte(`{"translations":{"zh":{"title":"x"}}}`)))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobsEndpoint(t *testing.T) {
	server, queue := newTestServer(t)
	queue.Enqueue(jobs.EnqueueRequest{
		Origin:    "update",
		DedupeKey: jobs.Key("item-1", content.LangJA),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []jobs.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, jobs.StatusPending, tasks[0].Status)
}

func TestBackfillEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/backfill", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 0, body["dispatched"])
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/contents", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestShutdown_NoServer(t *testing.T) {
	server, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}
