package handlers

import "net/http"

// TasksRoutes serves boards, memberships, tasks and the board event stream.
func (h *Handler) TasksRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /boards", h.AuthMiddleware(h.CreateBoard))
	mux.HandleFunc("GET /boards", h.AuthMiddleware(h.ListBoards))
	mux.HandleFunc("GET /boards/{boardID}", h.AuthMiddleware(h.GetBoard))
	mux.HandleFunc("PATCH /boards/{boardID}", h.AuthMiddleware(h.UpdateBoard))
	mux.HandleFunc("DELETE /boards/{boardID}", h.AuthMiddleware(h.DeleteBoard))

	mux.HandleFunc("GET /boards/{boardID}/members", h.AuthMiddleware(h.ListMembers))
	mux.HandleFunc("POST /boards/{boardID}/members", h.AuthMiddleware(h.InviteMember))
	mux.HandleFunc("PATCH /boards/{boardID}/members/{userID}", h.AuthMiddleware(h.ChangeRole))
	mux.HandleFunc("DELETE /boards/{boardID}/members/{userID}", h.AuthMiddleware(h.RemoveMember))

	mux.HandleFunc("POST /tasks", h.AuthMiddleware(h.CreateTask))
	mux.HandleFunc("GET /tasks", h.AuthMiddleware(h.ListTasks))
	mux.HandleFunc("GET /tasks/{taskID}", h.AuthMiddleware(h.GetTask))
	mux.HandleFunc("PATCH /tasks/{taskID}", h.AuthMiddleware(h.UpdateTask))
	mux.HandleFunc("DELETE /tasks/{taskID}", h.AuthMiddleware(h.DeleteTask))

	mux.HandleFunc("GET /ws", h.AuthMiddleware(h.HandleWebSocket))
	return mux
}

// AuthRoutes serves registration, login and the current user.
func (h *Handler) AuthRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("GET /me", h.AuthMiddleware(h.Me))
	return mux
}
