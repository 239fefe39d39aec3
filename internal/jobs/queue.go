package jobs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/polyglot-cms/pkg/log"
)

// Executor runs one translation task. A non-nil error marks the task
// failed; the queue never retries on its own.
type Executor func(ctx context.Context, task *Task) error

// Queue is a bounded worker pool for background translation tasks.
// Submission is non-blocking; tasks with an identical dedupe key collapse
// onto the existing pending/running task, which serializes concurrent work
// for the same (content item, target language) pair.
type Queue struct {
	workerCount int
	maxTasks    int
	store       Store

	mu         sync.RWMutex
	tasks      map[string]*Task
	dedupe     map[string]string
	idCounter  uint64
	started    bool
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewQueue(workerCount int, store Store) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	q := &Queue{
		workerCount: workerCount,
		maxTasks:    1000,
		store:       store,
		tasks:       make(map[string]*Task),
		dedupe:      make(map[string]string),
		pendingIDs:  make(chan string, 1024),
		stopCh:      make(chan struct{}),
	}
	q.hydrateFromStore(context.Background())
	return q
}

// Enqueue registers a task. Returns the task snapshot and whether a new
// task was created; a duplicate dedupe key returns the existing task with
// created=false.
func (q *Queue) Enqueue(req EnqueueRequest) (*Task, bool) {
	now := time.Now()

	q.mu.Lock()
	if id, ok := q.dedupe[req.DedupeKey]; ok {
		if existing, exists := q.tasks[id]; exists {
			snapshot := cloneTask(existing)
			q.mu.Unlock()
			return snapshot, false
		}
		delete(q.dedupe, req.DedupeKey)
	}

	id := fmt.Sprintf("task-%d", atomic.AddUint64(&q.idCounter, 1))
	task := &Task{
		ID:        id,
		Origin:    req.Origin,
		DedupeKey: req.DedupeKey,
		Payload:   req.Payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.tasks[id] = task
	if req.DedupeKey != "" {
		q.dedupe[req.DedupeKey] = id
	}
	started := q.started
	snapshot := cloneTask(task)
	q.mu.Unlock()

	q.persistTask(snapshot)
	if started {
		q.enqueuePendingID(id)
	}
	return snapshot, true
}

func (q *Queue) Get(id string) (*Task, bool) {
	q.mu.RLock()
	task, ok := q.tasks[id]
	q.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneTask(task), true
}

func (q *Queue) List() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ret := make([]*Task, 0, len(q.tasks))
	for _, task := range q.tasks {
		ret = append(ret, cloneTask(task))
	}
	return ret
}

// Start launches the workers and requeues any pending tasks recovered from
// the store.
func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true

	pending := make([]string, 0)
	for id, task := range q.tasks {
		if task.Status == StatusPending {
			pending = append(pending, id)
		}
	}
	q.mu.Unlock()

	for _, id := range pending {
		q.enqueuePendingID(id)
	}

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

// Stop drains the pool: no new task is picked up and in-flight tasks run
// to completion before Stop returns.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
	})
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pendingIDs:
			task, ok := q.markRunning(id)
			if !ok {
				continue
			}

			if err := exec(context.Background(), task); err != nil {
				log.Error("Translation task %s (%s) failed: %v", task.ID, task.DedupeKey, err)
				q.markFailed(id, err)
				continue
			}
			q.markSuccess(id)
		}
	}
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		// Channel full; hand off asynchronously but give up on Stop so the
		// goroutine never outlives the pool.
		go func() {
			select {
			case q.pendingIDs <- id:
			case <-q.stopCh:
			}
		}()
	}
}

func (q *Queue) markRunning(id string) (*Task, bool) {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok || task.Status != StatusPending {
		q.mu.Unlock()
		return nil, false
	}
	task.Status = StatusRunning
	task.UpdatedAt = time.Now()
	snapshot := cloneTask(task)
	q.mu.Unlock()

	q.persistTask(snapshot)
	return snapshot, true
}

func (q *Queue) markSuccess(id string) {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	task.Status = StatusSuccess
	task.Error = ""
	task.UpdatedAt = time.Now()
	q.releaseDedupeLocked(task)
	pruned := q.pruneTerminalTasksLocked()
	snapshot := cloneTask(task)
	q.mu.Unlock()

	q.persistTask(snapshot)
	q.deleteTasksFromStore(pruned)
}

func (q *Queue) markFailed(id string, err error) {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	task.Status = StatusFailed
	if err != nil {
		task.Error = err.Error()
	}
	task.UpdatedAt = time.Now()
	q.releaseDedupeLocked(task)
	pruned := q.pruneTerminalTasksLocked()
	snapshot := cloneTask(task)
	q.mu.Unlock()

	q.persistTask(snapshot)
	q.deleteTasksFromStore(pruned)
}

func (q *Queue) releaseDedupeLocked(task *Task) {
	if task == nil || task.DedupeKey == "" {
		return
	}
	if id, ok := q.dedupe[task.DedupeKey]; ok && id == task.ID {
		delete(q.dedupe, task.DedupeKey)
	}
}

// pruneTerminalTasksLocked bounds the in-memory task map by dropping the
// oldest terminal tasks once the cap is exceeded.
func (q *Queue) pruneTerminalTasksLocked() []string {
	if q.maxTasks <= 0 || len(q.tasks) <= q.maxTasks {
		return nil
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(q.tasks))
	for id, task := range q.tasks {
		if task == nil {
			continue
		}
		if task.Status == StatusPending || task.Status == StatusRunning {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: task.UpdatedAt})
	}
	if len(terminal) == 0 {
		return nil
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := len(q.tasks) - q.maxTasks
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}

	pruned := make([]string, 0, toRemove)
	for i := 0; i < toRemove; i++ {
		id := terminal[i].id
		if task := q.tasks[id]; task != nil {
			q.releaseDedupeLocked(task)
		}
		delete(q.tasks, id)
		pruned = append(pruned, id)
	}
	return pruned
}

func (q *Queue) deleteTasksFromStore(ids []string) {
	if q.store == nil || len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if err := q.store.DeleteTask(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned task %s from store: %v", id, err)
		}
	}
}

// hydrateFromStore reloads persisted tasks. Tasks caught mid-run by a
// restart go back to pending.
func (q *Queue) hydrateFromStore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadTasks(ctx)
	if err != nil {
		log.Error("Failed to load tasks from store: %v", err)
		return
	}

	now := time.Now()
	toPersist := make([]*Task, 0)
	q.mu.Lock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		task := cloneTask(raw)
		if task.Status == StatusRunning {
			task.Status = StatusPending
			task.UpdatedAt = now
			toPersist = append(toPersist, cloneTask(task))
		}
		q.tasks[task.ID] = task
		if (task.Status == StatusPending || task.Status == StatusRunning) && task.DedupeKey != "" {
			q.dedupe[task.DedupeKey] = task.ID
		}
		q.updateIDCounterLocked(task.ID)
	}
	q.mu.Unlock()

	for _, task := range toPersist {
		q.persistTask(task)
	}
}

func (q *Queue) updateIDCounterLocked(taskID string) {
	if !strings.HasPrefix(taskID, "task-") {
		return
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(taskID, "task-"), 10, 64)
	if err != nil {
		return
	}
	if n > q.idCounter {
		q.idCounter = n
	}
}

func (q *Queue) persistTask(task *Task) {
	if q.store == nil || task == nil {
		return
	}
	if err := q.store.UpsertTask(context.Background(), task); err != nil {
		log.Error("Failed to persist task %s: %v", task.ID, err)
	}
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}
	tmp := *task
	return &tmp
}
