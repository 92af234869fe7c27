package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusToDo       TaskStatus = "To Do"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusDone       TaskStatus = "Done"
)

type Task struct {
	ID          uuid.UUID     `json:"id"`
	BoardID     uuid.UUID     `json:"board_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      TaskStatus    `json:"status"`
	AssigneeID  uuid.NullUUID `json:"assignee_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ParseTaskStatus converts various user inputs to a canonical status.
// Empty input maps to the default status.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "todo", "to do", "to-do", "to_do":
		return TaskStatusToDo, true
	case "in-progress", "in_progress", "inprogress", "in progress":
		return TaskStatusInProgress, true
	case "done":
		return TaskStatusDone, true
	default:
		return "", false
	}
}
