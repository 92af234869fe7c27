package db

import (
	"context"
	"fmt"
	"time"

	"github.com/chepyr/task-boards/internal/models"
	"github.com/google/uuid"
)

type MembershipRepository struct {
	db DBTX
}

func NewMembershipRepository(db DBTX) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) Get(ctx context.Context, boardID, userID uuid.UUID) (*models.Membership, error) {
	query := `SELECT board_id, user_id, role, created_at, updated_at
	 FROM board_members WHERE board_id = $1 AND user_id = $2`
	m := &models.Membership{}
	err := r.db.QueryRowContext(ctx, query, boardID, userID).Scan(
		&m.BoardID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("membership of %s on board %s: %w", userID, boardID, classify(err))
	}
	return m, nil
}

// GetRole returns models.ErrNotFound when the user is not a member.
func (r *MembershipRepository) GetRole(ctx context.Context, boardID, userID uuid.UUID) (models.Role, error) {
	var role models.Role
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM board_members WHERE board_id = $1 AND user_id = $2`,
		boardID, userID,
	).Scan(&role)
	if err != nil {
		return "", fmt.Errorf("role of %s on board %s: %w", userID, boardID, classify(err))
	}
	return role, nil
}

// Add inserts a membership. It fails with models.ErrConflict when the pair
// already has a row and with models.ErrNotFound when the board or user does
// not exist. The primary key on (board_id, user_id) backs the existence check
// when two inserts race.
func (r *MembershipRepository) Add(ctx context.Context, boardID, userID uuid.UUID, role models.Role) (*models.Membership, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidRole, role)
	}

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM board_members WHERE board_id = $1 AND user_id = $2)`,
		boardID, userID,
	).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: user %s is already a member of board %s", models.ErrConflict, userID, boardID)
	}

	now := time.Now().UTC()
	m := &models.Membership{
		BoardID:   boardID,
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	query := `INSERT INTO board_members (board_id, user_id, role, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, m.BoardID, m.UserID, m.Role, m.CreatedAt, m.UpdatedAt); err != nil {
		return nil, fmt.Errorf("add %s to board %s: %w", userID, boardID, classify(err))
	}
	return m, nil
}

// ChangeRole fails with models.ErrNotFound when there is no membership to change.
func (r *MembershipRepository) ChangeRole(ctx context.Context, boardID, userID uuid.UUID, role models.Role) (*models.Membership, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidRole, role)
	}

	query := `UPDATE board_members SET role = $1, updated_at = $2 WHERE board_id = $3 AND user_id = $4`
	res, err := r.db.ExecContext(ctx, query, role, time.Now().UTC(), boardID, userID)
	if err != nil {
		return nil, fmt.Errorf("change role of %s on board %s: %w", userID, boardID, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("membership of %s on board %s: %w", userID, boardID, models.ErrNotFound)
	}
	return r.Get(ctx, boardID, userID)
}

func (r *MembershipRepository) Remove(ctx context.Context, boardID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM board_members WHERE board_id = $1 AND user_id = $2`, boardID, userID)
	if err != nil {
		return fmt.Errorf("remove %s from board %s: %w", userID, boardID, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("membership of %s on board %s: %w", userID, boardID, models.ErrNotFound)
	}
	return nil
}

func (r *MembershipRepository) CountOwners(ctx context.Context, boardID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM board_members WHERE board_id = $1 AND role = $2`,
		boardID, models.RoleOwner,
	).Scan(&n)
	return n, err
}

// ListBoardsForUser returns every board the user belongs to with the user's
// role on it, ordered by board creation time and then id.
func (r *MembershipRepository) ListBoardsForUser(ctx context.Context, userID uuid.UUID) ([]*models.BoardWithRole, error) {
	query := `SELECT b.id, b.owner_id, b.name, b.created_at, b.updated_at, m.role
	 FROM board_members m
	 JOIN boards b ON b.id = m.board_id
	 WHERE m.user_id = $1
	 ORDER BY b.created_at, b.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	boards := []*models.BoardWithRole{}
	for rows.Next() {
		b := &models.BoardWithRole{}
		if err := rows.Scan(
			&b.ID, &b.OwnerID, &b.Name, &b.CreatedAt, &b.UpdatedAt, &b.Role,
		); err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return boards, nil
}

func (r *MembershipRepository) ListMembers(ctx context.Context, boardID uuid.UUID) ([]*models.Member, error) {
	query := `SELECT m.board_id, m.user_id, m.role, m.created_at, m.updated_at, u.username, u.email
	 FROM board_members m
	 JOIN users u ON u.id = m.user_id
	 WHERE m.board_id = $1
	 ORDER BY m.created_at, m.user_id`
	rows, err := r.db.QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []*models.Member{}
	for rows.Next() {
		m := &models.Member{}
		if err := rows.Scan(
			&m.BoardID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt, &m.Username, &m.Email,
		); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}
