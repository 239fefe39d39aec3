// Package service orchestrates the content translation pipeline: picking a
// source draft, translating field by field, persisting results and
// dispatching background work for the languages that can wait.
package service

import (
	"context"

	"github.com/MimeLyc/polyglot-cms/internal/content"
)

// Repository is the persistence surface the orchestrator needs.
// *persistence.SQLiteStore satisfies it.
type Repository interface {
	CreateContentItem(ctx context.Context, item *content.ContentItem) error
	UpdateContentItem(ctx context.Context, item *content.ContentItem) error
	GetContentItem(ctx context.Context, id string) (content.ContentItem, bool, error)
	ListContentItems(ctx context.Context) ([]content.ContentItem, error)
	ListIncompleteItems(ctx context.Context) ([]content.ContentItem, error)
	GetTranslation(ctx context.Context, itemID string, lang content.Language) (content.Translation, bool, error)
	ListTranslations(ctx context.Context, itemID string) ([]content.Translation, error)
	UpsertTranslation(ctx context.Context, tr *content.Translation) error
}

// DocumentTranslator is the translation surface the orchestrator needs.
// *translate.Translator satisfies it.
type DocumentTranslator interface {
	Translate(ctx context.Context, text string, source, target content.Language) (string, error)
	TranslateText(ctx context.Context, text string, source, target content.Language) (string, error)
	TranslateDocument(ctx context.Context, value string, source, target content.Language) (string, error)
}

// CreateRequest creates a content item together with at least one
// author-supplied translation. Missing languages are filled in synchronously
// before anything is persisted.
type CreateRequest struct {
	Kind           content.Kind                       `json:"kind"`
	Slug           string                             `json:"slug"`
	Status         string                             `json:"status"`
	NeedAIGenerate bool                               `json:"need_ai_generate"`
	Translations   map[content.Language]content.Draft `json:"translations"`
}

// CreateResult is the persisted item with all of its translations.
type CreateResult struct {
	Item         content.ContentItem   `json:"item"`
	Translations []content.Translation `json:"translations"`
}

// UpdateRequest updates the author-supplied translations of an existing
// item. A draft only counts as supplied when it has a non-empty title;
// languages without one are candidates for background regeneration.
type UpdateRequest struct {
	ItemID         string                             `json:"-"`
	Status         string                             `json:"status,omitempty"`
	NeedAIGenerate *bool                              `json:"need_ai_generate,omitempty"`
	Translations   map[content.Language]content.Draft `json:"translations"`
}

// UpdateResult reports what the update actually touched.
type UpdateResult struct {
	Item             content.ContentItem `json:"item"`
	UpdatedLanguages []content.Language  `json:"updated_languages"`
	TasksDispatched  int                 `json:"tasks_dispatched"`
}
