package jobs

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/polyglot-cms/internal/content"
)

func TestQueue_Enqueue_DeduplicatesSameKey(t *testing.T) {
	q := NewQueue(2, nil)

	taskA, createdA := q.Enqueue(EnqueueRequest{
		Origin:    "update",
		DedupeKey: Key("item-1", content.LangJA),
	})
	taskB, createdB := q.Enqueue(EnqueueRequest{
		Origin:    "backfill",
		DedupeKey: Key("item-1", content.LangJA),
	})

	require.True(t, createdA)
	require.False(t, createdB)
	require.NotNil(t, taskA)
	require.NotNil(t, taskB)
	assert.Equal(t, taskA.ID, taskB.ID)
	assert.Equal(t, "update", taskB.Origin)
}

func TestQueue_Enqueue_DifferentTargetsDoNotCollide(t *testing.T) {
	q := NewQueue(2, nil)

	_, createdJA := q.Enqueue(EnqueueRequest{DedupeKey: Key("item-1", content.LangJA)})
	_, createdEN := q.Enqueue(EnqueueRequest{DedupeKey: Key("item-1", content.LangEN)})

	assert.True(t, createdJA)
	assert.True(t, createdEN)
}

func TestQueue_Enqueue_AllowsRetryAfterFailure(t *testing.T) {
	q := NewQueue(1, nil)

	var attempts int
	q.Start(func(_ context.Context, _ *Task) error {
		attempts++
		if attempts == 1 {
			return assert.AnError
		}
		return nil
	})
	defer q.Stop()

	first, created := q.Enqueue(EnqueueRequest{DedupeKey: "retry-key"})
	require.True(t, created)
	require.NotNil(t, first)

	require.Eventually(t, func() bool {
		got, ok := q.Get(first.ID)
		return ok && got != nil && got.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	failed, ok := q.Get(first.ID)
	require.True(t, ok)
	assert.NotEmpty(t, failed.Error)

	second, created := q.Enqueue(EnqueueRequest{DedupeKey: "retry-key"})
	require.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)

	require.Eventually(t, func() bool {
		got, ok := q.Get(second.ID)
		return ok && got != nil && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_WorkersProcessConcurrently(t *testing.T) {
	q := NewQueue(3, nil)

	var mu sync.Mutex
	running := 0
	peak := 0
	release := make(chan struct{})

	q.Start(func(_ context.Context, _ *Task) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		<-release
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	})
	defer q.Stop()

	for i := 0; i < 3; i++ {
		q.Enqueue(EnqueueRequest{DedupeKey: Key("item", content.Language(rune('a'+i)))})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return peak == 3
	}, time.Second, 10*time.Millisecond)
	close(release)
}

func TestQueue_Stop_ReleasesOverflowSubmissions(t *testing.T) {
	q := NewQueue(1, nil)
	for i := 0; i < cap(q.pendingIDs); i++ {
		q.pendingIDs <- "filler"
	}

	before := runtime.NumGoroutine()
	q.enqueuePendingID("overflow")
	q.Stop()

	// The overflow handoff goroutine must exit once the pool stops.
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 10*time.Millisecond)
}

type memoryTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{tasks: make(map[string]*Task)}
}

func (m *memoryTaskStore) LoadTasks(_ context.Context) ([]*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]*Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		tmp := *task
		ret = append(ret, &tmp)
	}
	return ret, nil
}

func (m *memoryTaskStore) UpsertTask(_ context.Context, task *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tmp := *task
	m.tasks[task.ID] = &tmp
	return nil
}

func (m *memoryTaskStore) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	return nil
}

func TestQueue_HydratesRunningTasksAsPending(t *testing.T) {
	store := newMemoryTaskStore()
	require.NoError(t, store.UpsertTask(context.Background(), &Task{
		ID:        "task-7",
		DedupeKey: Key("item-1", content.LangEN),
		Status:    StatusRunning,
	}))

	q := NewQueue(1, store)

	got, ok := q.Get("task-7")
	require.True(t, ok)
	assert.Equal(t, StatusPending, got.Status)

	// The recovered task still holds its dedupe slot.
	_, created := q.Enqueue(EnqueueRequest{DedupeKey: Key("item-1", content.LangEN)})
	assert.False(t, created)

	// New IDs continue after the recovered counter.
	fresh, created := q.Enqueue(EnqueueRequest{DedupeKey: "other"})
	require.True(t, created)
	assert.Equal(t, "task-8", fresh.ID)
}

func TestQueue_PersistsLifecycleToStore(t *testing.T) {
	store := newMemoryTaskStore()
	q := NewQueue(1, store)
	q.Start(func(_ context.Context, _ *Task) error { return nil })
	defer q.Stop()

	task, created := q.Enqueue(EnqueueRequest{DedupeKey: "persist-key"})
	require.True(t, created)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		saved, ok := store.tasks[task.ID]
		return ok && saved.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)
}
