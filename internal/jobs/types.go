package jobs

import (
	"time"

	"github.com/MimeLyc/polyglot-cms/internal/content"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// TaskPayload describes one unit of background translation work: fill in
// the target language of a content item from the given source draft.
type TaskPayload struct {
	ItemID      string           `json:"item_id"`
	Kind        content.Kind     `json:"kind"`
	Source      content.Language `json:"source"`
	Target      content.Language `json:"target"`
	SourceDraft content.Draft    `json:"source_draft"`
}

// Key builds the dedupe key for a task. One key per (item, target language)
// pair: concurrent submissions for the same pair collapse onto the pending
// task instead of racing.
func Key(itemID string, target content.Language) string {
	return itemID + "|" + string(target)
}

type EnqueueRequest struct {
	// Origin records what triggered the task ("update" or "backfill").
	Origin    string
	DedupeKey string
	Payload   TaskPayload
}

// Task is a background translation job with its lifecycle state.
type Task struct {
	ID        string      `json:"id"`
	Origin    string      `json:"origin"`
	DedupeKey string      `json:"dedupe_key"`
	Payload   TaskPayload `json:"payload"`
	Status    Status      `json:"status"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
