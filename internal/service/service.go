package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/polyglot-cms/internal/content"
	"github.com/MimeLyc/polyglot-cms/internal/jobs"
	"github.com/MimeLyc/polyglot-cms/pkg/log"
)

// TaskQueue is the background dispatch surface. *jobs.Queue satisfies it.
type TaskQueue interface {
	Enqueue(req jobs.EnqueueRequest) (*jobs.Task, bool)
}

// Orchestrator ties repository, translator and task queue together behind
// the create/update/backfill operations.
type Orchestrator struct {
	repo       Repository
	translator DocumentTranslator
	queue      TaskQueue
	now        func() time.Time

	backfillGroup singleflight.Group
}

func NewOrchestrator(repo Repository, translator DocumentTranslator, queue TaskQueue) *Orchestrator {
	return &Orchestrator{
		repo:       repo,
		translator: translator,
		queue:      queue,
		now:        time.Now,
	}
}

// CreateWithTranslations creates an item together with the supplied
// translations. With NeedAIGenerate set, every missing language is filled
// synchronously from the highest-priority supplied draft, all-or-nothing: a
// failed translation aborts the create and nothing is persisted. Without the
// flag only supplied titled drafts are stored and no backend call is made.
func (o *Orchestrator) CreateWithTranslations(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: invalid kind %q", ErrInvalidRequest, req.Kind)
	}
	for lang := range req.Translations {
		if !lang.Valid() {
			return nil, fmt.Errorf("%w: unsupported language %q", ErrInvalidRequest, lang)
		}
	}

	source, sourceDraft, err := content.PickSource(req.Translations)
	if err != nil {
		return nil, err
	}
	if detected, ok := content.DetectLanguage(sourceDraft); ok && detected != source {
		log.Warn("Source draft declared %s but detected as %s, trusting the declaration", source, detected)
	}

	now := o.now()
	item := content.ContentItem{
		ID:             uuid.NewString(),
		Kind:           req.Kind,
		Slug:           req.Slug,
		Status:         req.Status,
		NeedAIGenerate: req.NeedAIGenerate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if item.Slug == "" {
		item.Slug = item.ID
	}
	if item.Status == "" {
		item.Status = "Draft"
	}

	translations := make([]content.Translation, 0, len(content.Languages))
	for _, lang := range content.Languages {
		draft, supplied := req.Translations[lang]
		switch {
		case supplied && draft.HasTitle():
			draft.IsAIGenerated = false
		case req.NeedAIGenerate:
			generated, err := o.translateDraft(ctx, sourceDraft, source, lang)
			if err != nil {
				return nil, fmt.Errorf("translate %s -> %s: %w", source, lang, err)
			}
			draft = generated
		default:
			// Auto-completion is off, the language stays absent.
			continue
		}
		translations = append(translations, translationFromDraft(item.ID, lang, draft, now))
	}

	if err := o.repo.CreateContentItem(ctx, &item); err != nil {
		return nil, fmt.Errorf("persist content item: %w", err)
	}
	for i := range translations {
		if err := o.repo.UpsertTranslation(ctx, &translations[i]); err != nil {
			return nil, fmt.Errorf("persist %s translation: %w", translations[i].Language, err)
		}
	}

	log.Info("Created %s %s with %d translations (source %s)", item.Kind, item.ID, len(translations), source)
	return &CreateResult{Item: item, Translations: translations}, nil
}

// UpdateWithTranslations saves the author-supplied titled drafts that
// actually changed, then dispatches background regeneration for the
// languages whose stored translation is machine-generated or missing. A
// draft without a title does not count as supplied; its language falls
// through to auto-generation. A resubmission of identical content writes
// nothing.
func (o *Orchestrator) UpdateWithTranslations(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	item, ok, err := o.repo.GetContentItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("content item %s: %w", req.ItemID, ErrNotFound)
	}
	for lang := range req.Translations {
		if !lang.Valid() {
			return nil, fmt.Errorf("%w: unsupported language %q", ErrInvalidRequest, lang)
		}
	}

	now := o.now()
	updated := make([]content.Language, 0, len(req.Translations))
	supplied := make(map[content.Language]content.Draft, len(req.Translations))

	for _, lang := range content.Languages {
		draft, ok := req.Translations[lang]
		if !ok || !draft.HasTitle() {
			continue
		}
		draft.IsAIGenerated = false
		supplied[lang] = draft

		existing, found, err := o.repo.GetTranslation(ctx, req.ItemID, lang)
		if err != nil {
			return nil, err
		}
		if found && !existing.DiffersFrom(draft) {
			continue
		}

		tr := translationFromDraft(req.ItemID, lang, draft, now)
		if found {
			tr.CreatedAt = existing.CreatedAt
		}
		if err := o.repo.UpsertTranslation(ctx, &tr); err != nil {
			return nil, fmt.Errorf("persist %s translation: %w", lang, err)
		}
		updated = append(updated, lang)
	}

	itemChanged := false
	if req.Status != "" && req.Status != item.Status {
		item.Status = req.Status
		itemChanged = true
	}
	if req.NeedAIGenerate != nil && *req.NeedAIGenerate != item.NeedAIGenerate {
		item.NeedAIGenerate = *req.NeedAIGenerate
		itemChanged = true
	}
	if itemChanged || len(updated) > 0 {
		item.UpdatedAt = now
		if err := o.repo.UpdateContentItem(ctx, &item); err != nil {
			return nil, fmt.Errorf("persist content item: %w", err)
		}
	}

	dispatched := 0
	if item.NeedAIGenerate {
		// Source candidates are the stored titled translations overlaid with
		// what the author just supplied.
		candidates := make(map[content.Language]content.Draft)
		stored, err := o.repo.ListTranslations(ctx, req.ItemID)
		if err != nil {
			return nil, err
		}
		for _, tr := range stored {
			if tr.HasTitle() {
				candidates[tr.Language] = tr.Draft()
			}
		}
		for lang, draft := range supplied {
			candidates[lang] = draft
		}

		if source, sourceDraft, err := content.PickSource(candidates); err == nil {
			dispatched, err = o.dispatchRegeneration(ctx, item, source, sourceDraft, supplied, "update")
			if err != nil {
				return nil, err
			}
		}
	}

	return &UpdateResult{Item: item, UpdatedLanguages: updated, TasksDispatched: dispatched}, nil
}

// dispatchRegeneration enqueues one task per stale target language. A
// language is stale when its stored translation is missing, untitled or
// machine-generated; author-written translations are never queued for
// overwrite.
func (o *Orchestrator) dispatchRegeneration(
	ctx context.Context,
	item content.ContentItem,
	source content.Language,
	sourceDraft content.Draft,
	skip map[content.Language]content.Draft,
	origin string,
) (int, error) {
	dispatched := 0
	for _, target := range content.Languages {
		if target == source {
			continue
		}
		if _, ok := skip[target]; ok {
			continue
		}
		existing, found, err := o.repo.GetTranslation(ctx, item.ID, target)
		if err != nil {
			return dispatched, err
		}
		if found && existing.HasTitle() && !existing.IsAIGenerated {
			continue
		}

		_, created := o.queue.Enqueue(jobs.EnqueueRequest{
			Origin:    origin,
			DedupeKey: jobs.Key(item.ID, target),
			Payload: jobs.TaskPayload{
				ItemID:      item.ID,
				Kind:        item.Kind,
				Source:      source,
				Target:      target,
				SourceDraft: sourceDraft,
			},
		})
		if created {
			dispatched++
		}
	}
	return dispatched, nil
}

// ExecuteTask is the queue executor. It re-checks the stored translation
// right before writing because an author may have supplied their own text
// while the task waited in the queue.
func (o *Orchestrator) ExecuteTask(ctx context.Context, task *jobs.Task) error {
	payload := task.Payload

	existing, found, err := o.repo.GetTranslation(ctx, payload.ItemID, payload.Target)
	if err != nil {
		return err
	}
	if found && existing.HasTitle() && !existing.IsAIGenerated {
		log.Info("Skipping task %s: %s translation of %s was written by the author", task.ID, payload.Target, payload.ItemID)
		return nil
	}

	draft, err := o.translateDraft(ctx, payload.SourceDraft, payload.Source, payload.Target)
	if err != nil {
		return err
	}
	if found && !existing.DiffersFrom(draft) {
		log.Info("Task %s: %s translation of %s is already current, skipping write", task.ID, payload.Target, payload.ItemID)
		return nil
	}

	now := o.now()
	tr := translationFromDraft(payload.ItemID, payload.Target, draft, now)
	if found {
		tr.CreatedAt = existing.CreatedAt
	}
	if err := o.repo.UpsertTranslation(ctx, &tr); err != nil {
		return fmt.Errorf("persist %s translation: %w", payload.Target, err)
	}
	log.Info("Task %s filled %s translation of %s from %s", task.ID, payload.Target, payload.ItemID, payload.Source)
	return nil
}

// translateDraft produces a machine translation of every translatable
// field. Field errors propagate; callers decide whether to abort or retry.
func (o *Orchestrator) translateDraft(ctx context.Context, src content.Draft, source, target content.Language) (content.Draft, error) {
	out := content.Draft{IsAIGenerated: true}

	title, err := o.translator.Translate(ctx, src.Title, source, target)
	if err != nil {
		return content.Draft{}, err
	}
	out.Title = title

	description, err := o.translator.Translate(ctx, src.Description, source, target)
	if err != nil {
		return content.Draft{}, err
	}
	out.Description = description

	summary, err := o.translator.TranslateText(ctx, src.Summary, source, target)
	if err != nil {
		return content.Draft{}, err
	}
	out.Summary = summary

	body, err := o.translator.TranslateDocument(ctx, src.Content, source, target)
	if err != nil {
		return content.Draft{}, err
	}
	out.Content = body

	if len(src.WhatIDid) > 0 {
		out.WhatIDid = make([]content.WorkItem, 0, len(src.WhatIDid))
		for _, item := range src.WhatIDid {
			title, err := o.translator.Translate(ctx, item.Title, source, target)
			if err != nil {
				return content.Draft{}, err
			}
			desc, err := o.translator.Translate(ctx, item.Description, source, target)
			if err != nil {
				return content.Draft{}, err
			}
			out.WhatIDid = append(out.WhatIDid, content.WorkItem{
				Title:       title,
				Description: desc,
				Icon:        item.Icon,
			})
		}
	}
	return out, nil
}

func translationFromDraft(itemID string, lang content.Language, draft content.Draft, now time.Time) content.Translation {
	return content.Translation{
		ItemID:        itemID,
		Language:      lang,
		Title:         draft.Title,
		Description:   draft.Description,
		Content:       draft.Content,
		Summary:       draft.Summary,
		WhatIDid:      draft.WhatIDid,
		IsAIGenerated: draft.IsAIGenerated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
