// Package access decides whether an actor may perform an action on a board.
//
// Authorize is a pure function over Facts that the caller has loaded from
// the store, usually inside the same transaction that performs the write.
// It never touches storage itself, so every decision can be tested as a
// table.
package access

import (
	"fmt"

	"github.com/chepyr/task-boards/internal/models"
)

type Action int

const (
	ActionCreateBoard Action = iota
	ActionListBoards
	ActionViewBoard
	ActionDeleteBoard
	ActionListMembers
	ActionInviteMember
	ActionChangeRole
	ActionRemoveMember
	ActionCreateTask
	ActionListTasks
	ActionViewTask
	ActionUpdateTask
	ActionDeleteTask
	ActionSubscribe
	ActionUpdateBoard
)

var actionNames = map[Action]string{
	ActionCreateBoard:  "create_board",
	ActionListBoards:   "list_boards",
	ActionViewBoard:    "view_board",
	ActionDeleteBoard:  "delete_board",
	ActionListMembers:  "list_members",
	ActionInviteMember: "invite_member",
	ActionChangeRole:   "change_role",
	ActionRemoveMember: "remove_member",
	ActionCreateTask:   "create_task",
	ActionListTasks:    "list_tasks",
	ActionViewTask:     "view_task",
	ActionUpdateTask:   "update_task",
	ActionDeleteTask:   "delete_task",
	ActionSubscribe:    "subscribe",
	ActionUpdateBoard:  "update_board",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// boardScoped reports whether the action targets an existing board.
func (a Action) boardScoped() bool {
	return a != ActionCreateBoard && a != ActionListBoards
}

// Facts is everything a decision depends on. Role fields are empty when the
// corresponding user holds no membership on the board.
type Facts struct {
	Action      Action
	BoardExists bool
	ActorRole   models.Role

	// Membership actions.
	TargetFound bool        // invite target resolved to a user
	TargetRole  models.Role // target's current role on the board
	TargetSelf  bool        // target is the actor
	RequestRole string      // role requested by invite or change role, unparsed
	OwnerCount  int         // owners currently on the board
}

type Reason int

const (
	ReasonNone Reason = iota
	ReasonNotFound
	ReasonForbidden
	ReasonConflict
	ReasonInvalidRole
)

func (r Reason) Err() error {
	switch r {
	case ReasonNone:
		return nil
	case ReasonNotFound:
		return models.ErrNotFound
	case ReasonConflict:
		return models.ErrConflict
	case ReasonInvalidRole:
		return models.ErrInvalidRole
	default:
		return models.ErrForbidden
	}
}

type Decision struct {
	Allowed bool
	Reason  Reason
	Detail  string
	// Role is the parsed RequestRole on an allowed invite or role change.
	Role models.Role
}

// Err returns nil for an allowed decision and otherwise the taxonomy error
// matching the reason, wrapped with the detail.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	err := d.Reason.Err()
	if err == nil {
		err = models.ErrForbidden
	}
	if d.Detail == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, d.Detail)
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason Reason, format string, args ...any) Decision {
	return Decision{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Authorize evaluates the rules in precedence order: board existence first,
// then the actor's role, then the request's own validity.
func Authorize(f Facts) Decision {
	if f.Action.boardScoped() && !f.BoardExists {
		return deny(ReasonNotFound, "board does not exist")
	}

	switch f.Action {
	case ActionCreateBoard, ActionListBoards:
		return allow()
	case ActionInviteMember:
		return authorizeInvite(f)
	case ActionChangeRole:
		return authorizeChangeRole(f)
	case ActionRemoveMember:
		return authorizeRemove(f)
	case ActionUpdateBoard:
		if !f.ActorRole.CanEditBoard() {
			return deny(ReasonForbidden, "only owners and admins can rename the board")
		}
		return allow()
	case ActionDeleteBoard:
		if f.ActorRole != models.RoleOwner {
			return deny(ReasonForbidden, "only an owner can delete the board")
		}
		return allow()
	case ActionViewBoard, ActionListMembers, ActionSubscribe,
		ActionCreateTask, ActionListTasks, ActionViewTask, ActionUpdateTask, ActionDeleteTask:
		if !isMember(f.ActorRole) {
			return deny(ReasonForbidden, "not a member of this board")
		}
		return allow()
	default:
		return deny(ReasonForbidden, "unknown %s", f.Action)
	}
}

func authorizeInvite(f Facts) Decision {
	if !f.ActorRole.CanInvite() {
		return deny(ReasonForbidden, "only owners and admins can invite")
	}
	role, err := models.ParseRole(f.RequestRole)
	if err != nil {
		return deny(ReasonInvalidRole, "role %q is not one of owner, admin, member, viewer", f.RequestRole)
	}
	if role == models.RoleOwner && f.ActorRole != models.RoleOwner {
		return deny(ReasonForbidden, "only an owner can grant the owner role")
	}
	if !f.TargetFound {
		return deny(ReasonNotFound, "no user with that username or email")
	}
	if isMember(f.TargetRole) {
		return deny(ReasonConflict, "user is already a member of this board")
	}
	return Decision{Allowed: true, Role: role}
}

func authorizeChangeRole(f Facts) Decision {
	if !f.ActorRole.CanManageRoles() {
		return deny(ReasonForbidden, "only an owner can change roles")
	}
	role, err := models.ParseRole(f.RequestRole)
	if err != nil {
		return deny(ReasonInvalidRole, "role %q is not one of owner, admin, member, viewer", f.RequestRole)
	}
	if !isMember(f.TargetRole) {
		return deny(ReasonNotFound, "user is not a member of this board")
	}
	if f.TargetRole == models.RoleOwner && role != models.RoleOwner && f.OwnerCount <= 1 {
		return deny(ReasonConflict, "a board must keep at least one owner")
	}
	return Decision{Allowed: true, Role: role}
}

// authorizeRemove lets owners remove anyone, admins remove members and
// viewers, and any member leave.
func authorizeRemove(f Facts) Decision {
	if !isMember(f.ActorRole) {
		return deny(ReasonForbidden, "not a member of this board")
	}
	if !isMember(f.TargetRole) {
		if f.ActorRole.CanInvite() {
			return deny(ReasonNotFound, "user is not a member of this board")
		}
		return deny(ReasonForbidden, "only owners and admins can remove members")
	}

	switch {
	case f.TargetSelf, f.ActorRole == models.RoleOwner:
	case f.ActorRole == models.RoleAdmin && (f.TargetRole == models.RoleMember || f.TargetRole == models.RoleViewer):
	default:
		return deny(ReasonForbidden, "%s cannot remove %s", f.ActorRole, f.TargetRole)
	}

	if f.TargetRole == models.RoleOwner && f.OwnerCount <= 1 {
		return deny(ReasonConflict, "a board must keep at least one owner")
	}
	return allow()
}

func isMember(r models.Role) bool {
	return r.Valid()
}
