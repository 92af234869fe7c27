package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/task-boards/internal/access"
	"github.com/chepyr/task-boards/internal/db"
	"github.com/chepyr/task-boards/internal/events"
	"github.com/chepyr/task-boards/internal/models"
	"github.com/google/uuid"
)

type NewTask struct {
	BoardID     uuid.UUID
	Title       string
	Description string
	Status      string
	AssigneeID  uuid.NullUUID
}

// TaskPatch holds the fields of an update. Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *string
	AssigneeID  *uuid.NullUUID
}

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// CreateTask requires any membership on the board. An assignee, when given,
// must also be a member. The input is validated only once the actor has
// passed the gate.
func (s *BoardService) CreateTask(ctx context.Context, actorID uuid.UUID, in NewTask) (*models.Task, error) {
	var task *models.Task
	err := s.store.InTx(ctx, func(tx *db.Store) error {
		facts, err := s.loadFacts(ctx, tx, access.ActionCreateTask, actorID, in.BoardID)
		if err != nil {
			return err
		}
		if _, err := s.decide(facts, actorID, in.BoardID); err != nil {
			return err
		}
		if task, err = newTask(in); err != nil {
			return err
		}
		if err := checkAssignee(ctx, tx, in.BoardID, task.AssigneeID); err != nil {
			return err
		}
		return tx.Tasks.Create(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(task.BoardID, events.Event{Type: events.TaskCreated, Payload: task})
	return task, nil
}

func (s *BoardService) ListTasks(ctx context.Context, actorID, boardID uuid.UUID) ([]*models.Task, error) {
	if _, err := s.readGate(ctx, access.ActionListTasks, actorID, boardID); err != nil {
		return nil, err
	}
	return s.store.Tasks.ListByBoardID(ctx, boardID)
}

func (s *BoardService) GetTask(ctx context.Context, actorID, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.store.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.readGate(ctx, access.ActionViewTask, actorID, task.BoardID); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *BoardService) UpdateTask(ctx context.Context, actorID, taskID uuid.UUID, patch TaskPatch) (*models.Task, error) {
	var task *models.Task
	err := s.store.InTx(ctx, func(tx *db.Store) error {
		var err error
		if task, err = tx.Tasks.GetByID(ctx, taskID); err != nil {
			return err
		}
		facts, err := s.loadFacts(ctx, tx, access.ActionUpdateTask, actorID, task.BoardID)
		if err != nil {
			return err
		}
		if _, err := s.decide(facts, actorID, task.BoardID); err != nil {
			return err
		}
		if err := applyPatch(task, patch); err != nil {
			return err
		}
		if patch.AssigneeID != nil {
			if err := checkAssignee(ctx, tx, task.BoardID, task.AssigneeID); err != nil {
				return err
			}
		}
		task.UpdatedAt = time.Now().UTC()
		return tx.Tasks.Update(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(task.BoardID, events.Event{Type: events.TaskUpdated, Payload: task})
	return task, nil
}

func (s *BoardService) DeleteTask(ctx context.Context, actorID, taskID uuid.UUID) error {
	var boardID uuid.UUID
	err := s.store.InTx(ctx, func(tx *db.Store) error {
		task, err := tx.Tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		boardID = task.BoardID
		facts, err := s.loadFacts(ctx, tx, access.ActionDeleteTask, actorID, boardID)
		if err != nil {
			return err
		}
		if _, err := s.decide(facts, actorID, boardID); err != nil {
			return err
		}
		return tx.Tasks.Delete(ctx, taskID)
	})
	if err != nil {
		return err
	}

	s.events.Publish(boardID, events.Event{
		Type:    events.TaskDeleted,
		Payload: map[string]uuid.UUID{"task_id": taskID},
	})
	return nil
}

func newTask(in NewTask) (*models.Task, error) {
	title, err := validTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := validDescription(in.Description); err != nil {
		return nil, err
	}
	status, ok := models.ParseTaskStatus(in.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, in.Status)
	}

	now := time.Now().UTC()
	return &models.Task{
		ID:          uuid.New(),
		BoardID:     in.BoardID,
		Title:       title,
		Description: in.Description,
		Status:      status,
		AssigneeID:  in.AssigneeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func validTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", models.ErrInvalidInput)
	}
	if len(title) > MaxTitleLength {
		return "", fmt.Errorf("%w: title must be <= %d characters", models.ErrInvalidInput, MaxTitleLength)
	}
	return title, nil
}

func validDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description must be <= %d characters", models.ErrInvalidInput, MaxDescriptionLength)
	}
	return nil
}

func applyPatch(task *models.Task, patch TaskPatch) error {
	if patch.Title != nil {
		title, err := validTitle(*patch.Title)
		if err != nil {
			return err
		}
		task.Title = title
	}
	if patch.Description != nil {
		if err := validDescription(*patch.Description); err != nil {
			return err
		}
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		status, ok := models.ParseTaskStatus(*patch.Status)
		if !ok {
			return fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, *patch.Status)
		}
		task.Status = status
	}
	if patch.AssigneeID != nil {
		task.AssigneeID = *patch.AssigneeID
	}
	return nil
}

func checkAssignee(ctx context.Context, tx *db.Store, boardID uuid.UUID, assignee uuid.NullUUID) error {
	if !assignee.Valid {
		return nil
	}
	_, err := tx.Members.GetRole(ctx, boardID, assignee.UUID)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%w: %s", models.ErrInvalidAssignee, assignee.UUID)
	}
	return err
}
