package db

import (
	"context"
	"fmt"

	"github.com/chepyr/task-boards/internal/models"
	"github.com/google/uuid"
)

type TaskRepository struct {
	db DBTX
}

func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, board_id, title, description, status, assignee_id, created_at, updated_at`

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `INSERT INTO tasks (id, board_id, title, description, status, assignee_id, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(
		ctx, query, task.ID, task.BoardID, task.Title, task.Description, task.Status,
		task.AssigneeID, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task on board %s: %w", task.BoardID, classify(err))
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task := &models.Task{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID, &task.BoardID, &task.Title, &task.Description, &task.Status,
		&task.AssigneeID, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, classify(err))
	}
	return task, nil
}

// ListByBoardID returns the board's tasks oldest first.
func (r *TaskRepository) ListByBoardID(ctx context.Context, boardID uuid.UUID) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE board_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		task := &models.Task{}
		if err := rows.Scan(
			&task.ID, &task.BoardID, &task.Title, &task.Description, &task.Status,
			&task.AssigneeID, &task.CreatedAt, &task.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update writes the mutable fields. A task never moves between boards.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `UPDATE tasks SET title = $1, description = $2, status = $3, assignee_id = $4, updated_at = $5
	 WHERE id = $6 AND board_id = $7`
	res, err := r.db.ExecContext(ctx, query,
		task.Title, task.Description, task.Status, task.AssigneeID, task.UpdatedAt, task.ID, task.BoardID)
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %s on board %s: %w", task.ID, task.BoardID, models.ErrNotFound)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	return nil
}
