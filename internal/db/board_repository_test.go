package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chepyr/task-boards/internal/models"
	"github.com/google/uuid"
)

func newBoard(owner uuid.UUID, name string) *models.Board {
	now := time.Now().UTC()
	return &models.Board{
		ID:        uuid.New(),
		OwnerID:   owner,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_CreateBoard_AddsOwnerMembership(t *testing.T) {
	conn, s := setupTestDB(t)
	ctx := context.Background()
	owner := mustCreateUser(t, s, "owner")

	board := newBoard(owner.ID, "Sprint")
	m, err := s.CreateBoard(ctx, board)
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	if m.Role != models.RoleOwner || m.UserID != owner.ID || m.BoardID != board.ID {
		t.Errorf("unexpected owner membership: %+v", m)
	}

	var rows int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM board_members WHERE board_id = $1`, board.ID).Scan(&rows); err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if rows != 1 {
		t.Fatalf("want exactly 1 membership after create, got %d", rows)
	}

	got, err := s.Boards.GetByID(ctx, board.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Sprint" || got.OwnerID != owner.ID {
		t.Errorf("GetByID returned incorrect data: %+v", got)
	}
}

func TestStore_CreateBoard_RollsBackWhenMembershipFails(t *testing.T) {
	conn, s := setupTestDB(t)
	ctx := context.Background()
	owner := mustCreateUser(t, s, "owner")

	// make the second write of the transaction fail
	_, err := conn.Exec(`CREATE TRIGGER reject_members BEFORE INSERT ON board_members
	 BEGIN SELECT RAISE(ABORT, 'membership rejected'); END;`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	board := newBoard(owner.ID, "Doomed")
	if _, err := s.CreateBoard(ctx, board); err == nil {
		t.Fatal("expected CreateBoard to fail")
	}

	if _, err := s.Boards.GetByID(ctx, board.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("board must not be visible after failed create, got err=%v", err)
	}
}

func TestStore_CreateBoard_UnknownOwner(t *testing.T) {
	_, s := setupTestDB(t)

	_, err := s.CreateBoard(context.Background(), newBoard(uuid.New(), "Orphan"))
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown owner, got %v", err)
	}
}

func TestStore_CreateBoard_SameIDTwice(t *testing.T) {
	conn, s := setupTestDB(t)
	ctx := context.Background()
	owner := mustCreateUser(t, s, "owner")

	board := newBoard(owner.ID, "Retry")
	if _, err := s.CreateBoard(ctx, board); err != nil {
		t.Fatalf("first CreateBoard: %v", err)
	}
	if _, err := s.CreateBoard(ctx, board); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("retried CreateBoard: want ErrConflict, got %v", err)
	}

	var rows int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM board_members WHERE board_id = $1`, board.ID).Scan(&rows); err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if rows != 1 {
		t.Fatalf("want exactly 1 membership after retry, got %d", rows)
	}
}

func TestBoardRepository_ListByOwner(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	bob := mustCreateUser(t, s, "bob")

	for _, name := range []string{"A1", "A2"} {
		if _, err := s.CreateBoard(ctx, newBoard(alice.ID, name)); err != nil {
			t.Fatalf("CreateBoard %s: %v", name, err)
		}
	}
	if _, err := s.CreateBoard(ctx, newBoard(bob.ID, "B1")); err != nil {
		t.Fatalf("CreateBoard B1: %v", err)
	}

	boards, err := s.Boards.ListByOwner(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(boards) != 2 {
		t.Fatalf("want 2 boards for alice, got %d", len(boards))
	}
	for _, b := range boards {
		if b.OwnerID != alice.ID {
			t.Errorf("board %s has owner %s", b.Name, b.OwnerID)
		}
	}

	empty, err := s.Boards.ListByOwner(ctx, uuid.New())
	if err != nil {
		t.Fatalf("ListByOwner for unknown user: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty list, got %+v", empty)
	}
}

func TestBoardRepository_Delete_Cascades(t *testing.T) {
	conn, s := setupTestDB(t)
	ctx := context.Background()
	owner := mustCreateUser(t, s, "owner")
	board := newBoard(owner.ID, "Temp")
	if _, err := s.CreateBoard(ctx, board); err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	task := newTask(board.ID, "t")
	if err := s.Tasks.Create(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := s.Boards.Delete(ctx, board.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, table := range []string{"board_members", "tasks"} {
		var n int
		if err := conn.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE board_id = $1`, board.ID).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s still has %d rows for deleted board", table, n)
		}
	}

	if err := s.Boards.Delete(ctx, board.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second Delete: want ErrNotFound, got %v", err)
	}
}

func TestBoardRepository_Touch(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()
	_, board := setupBoard(t, s, "owner")

	if err := s.Boards.Touch(ctx, board.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	got, err := s.Boards.GetByID(ctx, board.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.UpdatedAt.Before(board.UpdatedAt) {
		t.Errorf("updated_at went backwards: %v < %v", got.UpdatedAt, board.UpdatedAt)
	}

	if err := s.Boards.Touch(ctx, uuid.New()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Touch unknown board: want ErrNotFound, got %v", err)
	}
}

func TestBoardRepository_Rename(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()
	_, board := setupBoard(t, s, "owner")

	got, err := s.Boards.Rename(ctx, board.ID, "Renamed")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if got.Name != "Renamed" || got.OwnerID != board.OwnerID {
		t.Errorf("unexpected board after rename: %+v", got)
	}

	if _, err := s.Boards.Rename(ctx, uuid.New(), "x"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Rename unknown board: want ErrNotFound, got %v", err)
	}
}
