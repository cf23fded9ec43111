package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rcalder/taskhub/internal/domain/task"
)

// TasksRepo mirrors the postgres repo in-process, including the
// ownership scoping and the newest-first list ordering.
type TasksRepo struct {
	mu    sync.RWMutex
	items map[string]task.Task
	seq   int64 // creation order tie-breaker
	order map[string]int64
}

func NewTasksRepo() *TasksRepo {
	return &TasksRepo{
		items: make(map[string]task.Task),
		order: make(map[string]int64),
	}
}

func (r *TasksRepo) ListByUser(ctx context.Context, userID string) ([]task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	output := make([]task.Task, 0)

	for _, t := range r.items {
		if t.UserID == userID {
			output = append(output, t)
		}
	}

	sort.Slice(output, func(i, j int) bool {
		a, b := output[i], output[j]

		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}

		return r.order[a.ID] > r.order[b.ID]
	})

	return output, nil
}

func (r *TasksRepo) Create(ctx context.Context, userID string, req task.CreateTaskRequest) (task.Task, error) {
	t := task.NewFromCreateRequest(userID, req)

	r.mu.Lock()
	r.seq++
	r.items[t.ID] = t
	r.order[t.ID] = r.seq
	r.mu.Unlock()

	return t, nil
}

func (r *TasksRepo) Update(ctx context.Context, userID, taskID string, patch task.UpdateTaskRequest) (task.Task, error) {
	if err := uuid.Validate(taskID); err != nil {
		return task.Task{}, task.ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[taskID]

	if !ok || t.UserID != userID {
		return task.Task{}, task.ErrNotFound
	}

	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	if patch.DueDate != nil {
		t.DueDate = patch.DueDate
	}
	if patch.DueTime != nil {
		t.DueTime = patch.DueTime
	}
	if patch.Category != nil {
		t.Category = *patch.Category
	}

	t.UpdatedAt = time.Now().UTC()

	r.items[taskID] = t

	return t, nil
}

func (r *TasksRepo) Delete(ctx context.Context, userID, taskID string) error {
	if err := uuid.Validate(taskID); err != nil {
		return task.ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[taskID]

	if !ok || t.UserID != userID {
		return task.ErrNotFound
	}

	delete(r.items, taskID)
	delete(r.order, taskID)

	return nil
}
