package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/chepyr/task-boards/internal/auth"
	"github.com/chepyr/task-boards/internal/db"
	"github.com/chepyr/task-boards/internal/models"
	"github.com/google/uuid"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)
)

// Register handles POST /register with {"username", "email", "password"}.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}
	var input struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	input.Username = strings.TrimSpace(input.Username)
	input.Email = db.NormalizeEmail(input.Email)

	if !usernameRegex.MatchString(input.Username) {
		sendError(w, "Username must be 3-32 letters, digits, '.', '_' or '-'", http.StatusBadRequest)
		return
	}
	if !emailRegex.MatchString(input.Email) {
		sendError(w, "Invalid email", http.StatusBadRequest)
		return
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.UserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrConflict) {
			sendError(w, "Username or email is already taken", http.StatusConflict)
			return
		}
		h.writeError(w, r, err)
		return
	}

	h.Log.WithField("user", user.ID).Info("user registered")
	sendJSON(w, http.StatusCreated, user)
}

// Login handles POST /login with {"login", "password"}, where login is a
// username or an email.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}
	var input struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	login := strings.TrimSpace(input.Login)
	if login == "" || input.Password == "" {
		sendError(w, "Login and password are required", http.StatusBadRequest)
		return
	}
	if strings.Contains(login, "@") {
		login = db.NormalizeEmail(login)
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	user, err := h.UserRepo.FindByUsernameOrEmail(ctx, login)
	if err == nil {
		err = auth.CheckPassword(user.PasswordHash, input.Password)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrUnauthenticated) {
			h.Log.WithField("ip", clientIP(r)).Info("failed login")
			sendError(w, "Invalid login or password", http.StatusUnauthorized)
			return
		}
		h.writeError(w, r, err)
		return
	}

	token, err := h.Tokens.Issue(user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"token":   token,
	})
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	user, err := h.UserRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// token outlived its user
			sendError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		h.writeError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, user)
}
