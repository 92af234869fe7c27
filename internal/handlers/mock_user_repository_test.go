package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chepyr/task-boards/internal/auth"
	"github.com/chepyr/task-boards/internal/models"
	"github.com/google/uuid"
)

type MockUserRepository struct {
	users     map[uuid.UUID]*models.User
	createErr error
	getErr    error
	mutex     sync.Mutex
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uuid.UUID]*models.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return fmt.Errorf("%w: username or email exists", models.ErrConflict)
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) find(match func(*models.User) bool) (*models.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == strings.ToLower(email) })
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *MockUserRepository) FindByUsernameOrEmail(ctx context.Context, login string) (*models.User, error) {
	if u, err := m.GetByUsername(ctx, login); err == nil {
		return u, nil
	}
	return m.GetByEmail(ctx, login)
}

func mockUser(username string) *models.User {
	return &models.User{
		ID:        uuid.New(),
		Username:  username,
		Email:     username + "@example.com",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func SetupMockUser(username, password string) (*MockUserRepository, *models.User) {
	repo := NewMockUserRepository()
	hash, err := auth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	user := mockUser(username)
	user.PasswordHash = hash
	repo.users[user.ID] = user
	return repo, user
}
