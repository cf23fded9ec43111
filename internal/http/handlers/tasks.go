package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rcalder/taskhub/internal/cache"
	"github.com/rcalder/taskhub/internal/config"
	"github.com/rcalder/taskhub/internal/domain/task"
	"github.com/rcalder/taskhub/internal/http/middlewares"
)

type TaskStore interface {
	ListByUser(ctx context.Context, userID string) ([]task.Task, error)
	Create(ctx context.Context, userID string, req task.CreateTaskRequest) (task.Task, error)
	Update(ctx context.Context, userID, taskID string, patch task.UpdateTaskRequest) (task.Task, error)
	Delete(ctx context.Context, userID, taskID string) error
}

type TasksHandler struct {
	repo      TaskStore
	listCache *cache.Cache
}

func NewTasksHandler(repo TaskStore) *TasksHandler {
	return &TasksHandler{repo: repo}
}

func NewTasksHandlerWithCache(repo TaskStore, c *cache.Cache) *TasksHandler {
	return &TasksHandler{repo: repo, listCache: c}
}

func listCacheKey(userID string) string {
	return "tasks:" + userID
}

func (h *TasksHandler) invalidate(userID string) {
	if h.listCache != nil {
		h.listCache.Delete(listCacheKey(userID))
	}
}

// ListTasks returns the caller's tasks, newest first, as a bare array.
func (h *TasksHandler) ListTasks(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid token")
		return
	}

	if h.listCache != nil {
		if cached, hit := h.listCache.Get(listCacheKey(userID)); hit {
			RespondJSONWithETag(ctx, http.StatusOK, cached)
			return
		}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	tasks, err := h.repo.ListByUser(cctx, userID)

	if err != nil {
		RespondInternal(ctx, "Could not fetch tasks")
		return
	}

	if h.listCache != nil {
		h.listCache.Set(listCacheKey(userID), tasks)
	}

	RespondJSONWithETag(ctx, http.StatusOK, tasks)
}

func (h *TasksHandler) CreateTask(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid token")
		return
	}

	var req task.CreateTaskRequest

	if !BindJSON(ctx, &req, "Title is required") {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	created, err := h.repo.Create(cctx, userID, req)

	if err != nil {
		RespondInternal(ctx, "Could not create task")
		return
	}

	h.invalidate(userID)

	ctx.JSON(http.StatusCreated, created)
}

func (h *TasksHandler) UpdateTask(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid token")
		return
	}

	var patch task.UpdateTaskRequest

	if !BindJSON(ctx, &patch, "Invalid request body") {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	updated, err := h.repo.Update(cctx, userID, ctx.Param("id"), patch)

	if err != nil {
		switch {
		case errors.Is(err, task.ErrInvalidID):
			RespondBadRequest(ctx, "Invalid task ID")
		case errors.Is(err, task.ErrNotFound):
			RespondNotFound(ctx, "Task not found")
		default:
			RespondInternal(ctx, "Could not update task")
		}
		return
	}

	h.invalidate(userID)

	ctx.JSON(http.StatusOK, updated)
}

func (h *TasksHandler) DeleteTask(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Invalid token")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.repo.Delete(cctx, userID, ctx.Param("id"))

	if err != nil {
		switch {
		case errors.Is(err, task.ErrInvalidID):
			RespondBadRequest(ctx, "Invalid task ID")
		case errors.Is(err, task.ErrNotFound):
			RespondNotFound(ctx, "Task not found")
		default:
			RespondInternal(ctx, "Could not delete task")
		}
		return
	}

	h.invalidate(userID)

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}
