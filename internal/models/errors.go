package models

import "errors"

// Failure taxonomy shared by the stores, the authorization engine and the
// transport. Callers wrap these with fmt.Errorf("%w: ...") and match with
// errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidAssignee = errors.New("assignee is not a board member")
	ErrInvalidInput    = errors.New("invalid input")

	// ErrInconsistent marks state that transactions should have made
	// impossible, such as a board with no owner.
	ErrInconsistent = errors.New("inconsistent state")
)
