package handlers

import (
	"context"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// HandleWebSocket subscribes the caller to a board's events. Membership is
// checked before the upgrade so failures get a normal HTTP status.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}
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
	err = h.Boards.AuthorizeSubscribe(ctx, userID, boardID)
	cancel()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client
		h.Log.WithField("board", boardID).WithError(err).Warn("websocket upgrade failed")
		return
	}
	h.Hub.Serve(boardID, userID, conn, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return h.Boards.AuthorizeSubscribe(ctx, userID, boardID)
	})
}

// checkOrigin accepts same-origin requests, requests without an Origin
// header, and origins listed in AllowedOrigins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.AllowedOrigins, "*") || slices.Contains(h.AllowedOrigins, origin) {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
