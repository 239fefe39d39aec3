package service

import (
	"context"

	"github.com/MimeLyc/polyglot-cms/internal/content"
	"github.com/MimeLyc/polyglot-cms/pkg/log"
)

// Backfill sweeps items flagged for auto-generation that still miss a
// titled translation in some language and enqueues one task per gap.
// Overlapping sweeps collapse onto the running one via singleflight, so a
// slow sweep is never stacked by the next cron tick.
func (o *Orchestrator) Backfill(ctx context.Context) (int, error) {
	result, err, _ := o.backfillGroup.Do("backfill", func() (any, error) {
		return o.backfillOnce(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (o *Orchestrator) backfillOnce(ctx context.Context) (int, error) {
	items, err := o.repo.ListIncompleteItems(ctx)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	log.Info("Backfill sweep found %d incomplete items", len(items))

	dispatched := 0
	for _, item := range items {
		stored, err := o.repo.ListTranslations(ctx, item.ID)
		if err != nil {
			return dispatched, err
		}
		drafts := make(map[content.Language]content.Draft, len(stored))
		for _, tr := range stored {
			if tr.HasTitle() {
				drafts[tr.Language] = tr.Draft()
			}
		}

		source, sourceDraft, err := content.PickSource(drafts)
		if err != nil {
			log.Warn("Backfill skipping item %s: %v", item.ID, err)
			continue
		}

		n, err := o.dispatchRegeneration(ctx, item, source, sourceDraft, drafts, "backfill")
		if err != nil {
			return dispatched, err
		}
		dispatched += n
	}

	if dispatched > 0 {
		log.Info("Backfill sweep dispatched %d tasks", dispatched)
	}
	return dispatched, nil
}
