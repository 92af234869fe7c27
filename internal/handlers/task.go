package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chepyr/task-boards/internal/service"
	"github.com/google/uuid"
)

type createTaskInput struct {
	BoardID     uuid.UUID  `json:"board_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	AssigneeID  *uuid.UUID `json:"assignee_id"`
}

// updateTaskInput keeps assignee_id raw so that an explicit null, which
// clears the assignee, can be told apart from an absent field.
type updateTaskInput struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	AssigneeID  json.RawMessage `json:"assignee_id"`
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	var input createTaskInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.BoardID == uuid.Nil {
		sendError(w, "board_id is required", http.StatusBadRequest)
		return
	}

	in := service.NewTask{
		BoardID:     input.BoardID,
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
	}
	if input.AssigneeID != nil {
		in.AssigneeID = uuid.NullUUID{UUID: *input.AssigneeID, Valid: true}
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	task, err := h.Boards.CreateTask(ctx, userID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/tasks/"+task.ID.String())
	sendJSON(w, http.StatusCreated, task)
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	boardID, err := uuid.Parse(r.URL.Query().Get("board_id"))
	if err != nil {
		sendError(w, "Valid board_id query parameter is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	tasks, err := h.Boards.ListTasks(ctx, userID, boardID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, tasks)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, "taskID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	task, err := h.Boards.GetTask(ctx, userID, taskID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, task)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, "taskID")
	if !ok {
		return
	}
	var input updateTaskInput
	if !decodeJSON(w, r, &input) {
		return
	}

	patch := service.TaskPatch{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
	}
	if len(input.AssigneeID) > 0 {
		var assignee uuid.NullUUID
		if err := json.Unmarshal(input.AssigneeID, &assignee); err != nil {
			sendError(w, "assignee_id must be a user id or null", http.StatusBadRequest)
			return
		}
		patch.AssigneeID = &assignee
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	task, err := h.Boards.UpdateTask(ctx, userID, taskID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, task)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, "taskID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.Boards.DeleteTask(ctx, userID, taskID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
