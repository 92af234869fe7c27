package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func authMux(repo *MockUserRepository) (*Handler, *http.ServeMux) {
	h := newTestHandler()
	h.UserRepo = repo
	return h, h.AuthRoutes()
}

func postJSON(mux http.Handler, path, body, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*MockUserRepository)
		body       string
		wantStatus int
	}{
		{"ok", nil, `{"username":"alice","email":"Alice@Example.com","password":"password123"}`, http.StatusCreated},
		{"bad json", nil, `{"username":`, http.StatusBadRequest},
		{"bad username", nil, `{"username":"a@b","email":"a@example.com","password":"password123"}`, http.StatusBadRequest},
		{"bad email", nil, `{"username":"alice","email":"not-an-email","password":"password123"}`, http.StatusBadRequest},
		{"short password", nil, `{"username":"alice","email":"a@example.com","password":"123"}`, http.StatusBadRequest},
		{"taken", func(r *MockUserRepository) {
			_ = r.Create(context.Background(), mockUser("taken"))
		}, `{"username":"taken","email":"new@example.com","password":"password123"}`, http.StatusConflict},
		{"store down", func(r *MockUserRepository) {
			r.createErr = errors.New("connection refused")
		}, `{"username":"alice","email":"a@example.com","password":"password123"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockUserRepository()
			if tt.setup != nil {
				tt.setup(repo)
			}
			_, mux := authMux(repo)

			rec := postJSON(mux, "/register", tt.body, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(rec.Body.String(), "refused") {
				t.Errorf("server error details leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestRegister_StoresNormalizedEmailAndHash(t *testing.T) {
	repo := NewMockUserRepository()
	_, mux := authMux(repo)

	rec := postJSON(mux, "/register", `{"username":"alice","email":" Alice@Example.COM ","password":"password123"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("response exposes password data: %s", rec.Body.String())
	}
	u, err := repo.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("user not stored under normalized email: %v", err)
	}
	if u.PasswordHash == "" || u.PasswordHash == "password123" {
		t.Errorf("password not hashed: %q", u.PasswordHash)
	}
}

func TestLoginAndMe(t *testing.T) {
	repo, user := SetupMockUser("alice", "password123")
	_, mux := authMux(repo)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"by username", `{"login":"alice","password":"password123"}`, http.StatusOK},
		{"by email", `{"login":"ALICE@example.com","password":"password123"}`, http.StatusOK},
		{"wrong password", `{"login":"alice","password":"nope-nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"login":"bob","password":"password123"}`, http.StatusUnauthorized},
		{"missing fields", `{"login":""}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(mux, "/login", tt.body, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}

	rec := postJSON(mux, "/login", `{"login":"alice","password":"password123"}`, "")
	var out struct {
		UserID string `json:"user_id"`
		Token  string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || out.Token == "" {
		t.Fatalf("decode login: %v body=%s", err, rec.Body.String())
	}
	if out.UserID != user.ID.String() {
		t.Errorf("user_id = %s, want %s", out.UserID, user.ID)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	me := httptest.NewRecorder()
	mux.ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Fatalf("GET /me status = %d body=%s", me.Code, me.Body.String())
	}
	var profile struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.Unmarshal(me.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode /me: %v", err)
	}
	if profile.Username != "alice" || profile.Email != "alice@example.com" {
		t.Errorf("unexpected profile: %+v", profile)
	}
}

func TestMe_UnknownUser(t *testing.T) {
	h, mux := authMux(NewMockUserRepository())
	token, err := h.Tokens.Issue(mockUser("ghost").ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	repo, _ := SetupMockUser("alice", "password123")
	h, mux := authMux(repo)
	h.RateLimiter = NewRateLimiter(2, time.Minute)
	t.Cleanup(h.RateLimiter.Stop)

	for i := 0; i < 2; i++ {
		if rec := postJSON(mux, "/login", `{"login":"alice","password":"wrong-pass"}`, ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d", i+1, rec.Code)
		}
	}
	if rec := postJSON(mux, "/login", `{"login":"alice","password":"password123"}`, ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt: status = %d, want 429", rec.Code)
	}
}
