package jobs

import "context"

// Store persists task states so a restarted process can resume pending
// work instead of losing it.
type Store interface {
	LoadTasks(ctx context.Context) ([]*Task, error)
	UpsertTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, taskID string) error
}
