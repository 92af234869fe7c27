package db

import (
	"context"
	"fmt"
	"time"

	"github.com/chepyr/task-boards/internal/models"
	"github.com/google/uuid"
)

type BoardRepository struct {
	db DBTX
}

func NewBoardRepository(db DBTX) *BoardRepository {
	return &BoardRepository{db: db}
}

// insert is only reachable through Store.CreateBoard, which pairs it with the
// owner membership in one transaction.
func (r *BoardRepository) insert(ctx context.Context, board *models.Board) error {
	query := `INSERT INTO boards (id, owner_id, name, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(
		ctx, query, board.ID, board.OwnerID, board.Name, board.CreatedAt, board.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert board %s: %w", board.ID, classify(err))
	}
	return nil
}

func (r *BoardRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	query := `SELECT id, owner_id, name, created_at, updated_at
	 FROM boards WHERE id = $1`
	board := &models.Board{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&board.ID, &board.OwnerID, &board.Name, &board.CreatedAt, &board.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("board %s: %w", id, classify(err))
	}
	return board, nil
}

// Touch bumps updated_at on the board row. Inside a transaction the row lock
// it takes is held until commit, so membership changes on one board run one at
// a time on either driver. Returns models.ErrNotFound for an unknown board.
func (r *BoardRepository) Touch(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE boards SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("lock board %s: %w", id, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("board %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// Rename sets the board's name and returns the updated row.
func (r *BoardRepository) Rename(ctx context.Context, id uuid.UUID, name string) (*models.Board, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE boards SET name = $1, updated_at = $2 WHERE id = $3`, name, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("rename board %s: %w", id, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("board %s: %w", id, models.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// Delete removes the board. Memberships and tasks go with it by cascade.
func (r *BoardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete board %s: %w", id, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("board %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListByOwner returns the boards a user created, newest first.
func (r *BoardRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Board, error) {
	query := `SELECT id, owner_id, name, created_at, updated_at
	 FROM boards WHERE owner_id = $1 ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	boards := []*models.Board{}
	for rows.Next() {
		board := &models.Board{}
		if err := rows.Scan(
			&board.ID, &board.OwnerID, &board.Name, &board.CreatedAt, &board.UpdatedAt,
		); err != nil {
			return nil, err
		}
		boards = append(boards, board)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return boards, nil
}

// CreateBoard persists the board and the creator's owner membership
// atomically: either both rows are visible afterwards or neither is.
func (s *Store) CreateBoard(ctx context.Context, board *models.Board) (*models.Membership, error) {
	var owner *models.Membership
	err := s.InTx(ctx, func(tx *Store) error {
		if err := tx.Boards.insert(ctx, board); err != nil {
			return err
		}
		m, err := tx.Members.Add(ctx, board.ID, board.OwnerID, models.RoleOwner)
		if err != nil {
			return fmt.Errorf("owner membership for board %s: %w", board.ID, err)
		}
		owner = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return owner, nil
}
