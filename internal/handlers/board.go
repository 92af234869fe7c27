package handlers

import (
	"context"
	"net/http"
	"strings"
)

/*
handles routes:
POST /boards - create board, the caller becomes its owner
GET /boards - boards the caller is a member of, with the caller's role
GET /boards?owned=true - boards the caller created
PATCH /boards/{boardID} - rename, owners and admins
*/
func (h *Handler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	var input struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	if name := strings.TrimSpace(input.Name); name == "" || len(name) > 100 {
		sendError(w, "Name is required and must be <= 100 characters", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	board, err := h.Boards.CreateBoard(ctx, userID, input.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/boards/"+board.ID.String())
	sendJSON(w, http.StatusCreated, board)
}

func (h *Handler) ListBoards(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if r.URL.Query().Get("owned") == "true" {
		boards, err := h.Boards.ListOwnedBoards(ctx, userID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		sendJSON(w, http.StatusOK, boards)
		return
	}

	boards, err := h.Boards.ListBoards(ctx, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, boards)
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	boardID, ok := pathUUID(w, r, "boardID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	board, err := h.Boards.GetBoard(ctx, userID, boardID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, board)
}

func (h *Handler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	boardID, ok := pathUUID(w, r, "boardID")
	if !ok {
		return
	}
	var input struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	board, err := h.Boards.RenameBoard(ctx, userID, boardID, input.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, board)
}

func (h *Handler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	boardID, ok := pathUUID(w, r, "boardID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.Boards.DeleteBoard(ctx, userID, boardID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
