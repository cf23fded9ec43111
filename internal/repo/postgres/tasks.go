package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rcalder/taskhub/internal/domain/task"
	"github.com/rcalder/taskhub/internal/observability"
)

type TasksRepo struct {
	pool    *pgxpool.Pool
	metrics *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, metrics *observability.Prom) *TasksRepo {
	return &TasksRepo{pool: pool, metrics: metrics}
}

func (r *TasksRepo) observe(op string, fn func() error) error {
	if r.metrics == nil {
		return fn()
	}

	return r.metrics.ObserveDB(op, fn)
}

const taskColumns = `id, user_id, title, description, completed, due_date, due_time, category, created_at, updated_at`

func (r *TasksRepo) ListByUser(ctx context.Context, userID string) ([]task.Task, error) {
	output := make([]task.Task, 0)

	err := r.observe("tasks.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+taskColumns+`
			 FROM tasks
			 WHERE user_id = $1
			 ORDER BY created_at DESC, id DESC`,
			userID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var t task.Task

			err = rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.DueDate, &t.DueTime, &t.Category, &t.CreatedAt, &t.UpdatedAt)

			if err != nil {
				return err
			}

			output = append(output, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return output, nil
}

func (r *TasksRepo) Create(ctx context.Context, userID string, req task.CreateTaskRequest) (task.Task, error) {
	t := task.NewFromCreateRequest(userID, req)

	err := r.observe("tasks.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO tasks (`+taskColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			t.ID, t.UserID, t.Title, t.Description, t.Completed, t.DueDate, t.DueTime, t.Category, t.CreatedAt, t.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return task.Task{}, err
	}

	return t, nil
}

// Update applies only the fields present in the patch and always bumps
// updated_at. The WHERE clause carries the owner, so a task belonging to
// someone else is indistinguishable from a missing one.
func (r *TasksRepo) Update(ctx context.Context, userID, taskID string, patch task.UpdateTaskRequest) (task.Task, error) {
	if err := uuid.Validate(taskID); err != nil {
		return task.Task{}, task.ErrInvalidID
	}

	sets := []string{"updated_at = NOW()"}
	args := []interface{}{taskID, userID}
	argsPosition := 3

	addSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argsPosition))
		args = append(args, value)
		argsPosition++
	}

	if patch.Title != nil {
		addSet("title", *patch.Title)
	}
	if patch.Description != nil {
		addSet("description", *patch.Description)
	}
	if patch.Completed != nil {
		addSet("completed", *patch.Completed)
	}
	if patch.DueDate != nil {
		addSet("due_date", *patch.DueDate)
	}
	if patch.DueTime != nil {
		addSet("due_time", *patch.DueTime)
	}
	if patch.Category != nil {
		addSet("category", *patch.Category)
	}

	var t task.Task

	err := r.observe("tasks.update", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE tasks
			 SET `+strings.Join(sets, ", ")+`
			 WHERE id = $1 AND user_id = $2
			 RETURNING `+taskColumns,
			args...,
		).Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.DueDate, &t.DueTime, &t.Category, &t.CreatedAt, &t.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}

		return task.Task{}, err
	}

	return t, nil
}

func (r *TasksRepo) Delete(ctx context.Context, userID, taskID string) error {
	if err := uuid.Validate(taskID); err != nil {
		return task.ErrInvalidID
	}

	var affected int64

	err := r.observe("tasks.delete", func() error {
		tag, err := r.pool.Exec(ctx,
			`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
			taskID, userID,
		)

		if err != nil {
			return err
		}

		affected = tag.RowsAffected()

		return nil
	})

	if err != nil {
		return err
	}

	if affected == 0 {
		return task.ErrNotFound
	}

	return nil
}
