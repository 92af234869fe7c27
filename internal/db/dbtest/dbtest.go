// Package dbtest provides an in-memory sqlite store for tests of packages
// built on top of internal/db.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/chepyr/task-boards/internal/db"
	"github.com/chepyr/task-boards/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const DSN = ":memory:?_foreign_keys=1"

// Open returns a fresh database with the schema applied. It is closed when
// the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	conn, err := db.Connect("sqlite3", DSN)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.CreateSchema(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// InsertUser stores a user with a placeholder password hash.
func InsertUser(t testing.TB, store *db.Store, username string) *models.User {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("insert user %s: %v", username, err)
	}
	return u
}
