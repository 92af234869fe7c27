package handlers

import (
	"context"
	"net/http"
)

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
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

	members, err := h.Boards.ListMembers(ctx, userID, boardID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, members)
}

// InviteMember handles POST /boards/{boardID}/members with
// {"username_or_email": "...", "role": "..."}.
func (h *Handler) InviteMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	boardID, ok := pathUUID(w, r, "boardID")
	if !ok {
		return
	}
	var input struct {
		UsernameOrEmail string `json:"username_or_email"`
		Role            string `json:"role"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.UsernameOrEmail == "" {
		sendError(w, "username_or_email is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	member, err := h.Boards.InviteMember(ctx, userID, boardID, input.UsernameOrEmail, input.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, member)
}

// ChangeRole handles PATCH /boards/{boardID}/members/{userID} with
// {"new_role": "..."}.
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	boardID, ok := pathUUID(w, r, "boardID")
	if !ok {
		return
	}
	targetID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	var input struct {
		NewRole string `json:"new_role"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	membership, err := h.Boards.ChangeRole(ctx, actorID, boardID, targetID, input.NewRole)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, membership)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	boardID, ok := pathUUID(w, r, "boardID")
	if !ok {
		return
	}
	targetID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.Boards.RemoveMember(ctx, actorID, boardID, targetID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
