package models

import (
	"time"

	"github.com/google/uuid"
)

// Board.OwnerID records who created the board. Authority on the board comes
// from its memberships, never from this field.
type Board struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BoardWithRole is a board as seen by one of its members.
type BoardWithRole struct {
	Board
	Role Role `json:"role"`
}
