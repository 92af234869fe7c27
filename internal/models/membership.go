package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is a board-level permission. The canonical spelling is lower case.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Roles is the closed set of valid roles, highest privilege first.
var Roles = []Role{RoleOwner, RoleAdmin, RoleMember, RoleViewer}

// ParseRole trims and case-folds s and checks it against Roles.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// CanInvite reports whether the role may add members to a board.
func (r Role) CanInvite() bool {
	return r == RoleOwner || r == RoleAdmin
}

// CanEditBoard reports whether the role may rename the board.
func (r Role) CanEditBoard() bool {
	return r == RoleOwner || r == RoleAdmin
}

// CanManageRoles reports whether the role may change other members' roles.
func (r Role) CanManageRoles() bool {
	return r == RoleOwner
}

type Membership struct {
	BoardID   uuid.UUID `json:"board_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member is a membership joined with the user's public fields.
type Member struct {
	Membership
	Username string `json:"username"`
	Email    string `json:"email"`
}
