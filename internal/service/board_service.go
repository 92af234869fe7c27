// Package service runs every board, membership and task operation: it loads
// the facts inside a transaction, asks the access engine, performs the write
// and publishes the resulting board event after commit.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/task-boards/internal/access"
	"github.com/chepyr/task-boards/internal/db"
	"github.com/chepyr/task-boards/internal/events"
	"github.com/chepyr/task-boards/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RoleCache serves read-side membership gates. Mutations never consult it.
// Set must drop the role when Evict ran on the board after gen was read from
// Generation.
type RoleCache interface {
	Get(ctx context.Context, boardID, userID uuid.UUID) (models.Role, bool)
	Generation(ctx context.Context, boardID uuid.UUID) (int64, error)
	Set(ctx context.Context, boardID, userID uuid.UUID, role models.Role, gen int64)
	Evict(ctx context.Context, boardID uuid.UUID, userIDs ...uuid.UUID) error
}

type Publisher interface {
	Publish(boardID uuid.UUID, ev events.Event)
	Disconnect(boardID uuid.UUID, userIDs ...uuid.UUID)
}

type BoardService struct {
	store  *db.Store
	roles  RoleCache
	events Publisher
	log    *logrus.Logger
}

// NewBoardService wires the service. roles and publisher may be nil.
func NewBoardService(store *db.Store, roles RoleCache, publisher Publisher, log *logrus.Logger) *BoardService {
	if roles == nil {
		roles = noCache{}
	}
	if publisher == nil {
		publisher = noPublisher{}
	}
	return &BoardService{store: store, roles: roles, events: publisher, log: log}
}

// loadFacts reads board existence, the actor's role and the owner count.
// Lookup failures other than a missing row abort the operation.
func (s *BoardService) loadFacts(ctx context.Context, tx *db.Store, action access.Action, actorID, boardID uuid.UUID) (access.Facts, error) {
	facts := access.Facts{Action: action}

	if _, err := tx.Boards.GetByID(ctx, boardID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return facts, nil
		}
		return facts, fmt.Errorf("load board: %w", err)
	}
	facts.BoardExists = true

	role, err := roleOrNone(ctx, tx, boardID, actorID)
	if err != nil {
		return facts, fmt.Errorf("load actor role: %w", err)
	}
	facts.ActorRole = role

	owners, err := tx.Members.CountOwners(ctx, boardID)
	if err != nil {
		return facts, fmt.Errorf("count owners: %w", err)
	}
	if owners == 0 {
		s.log.WithFields(logrus.Fields{
			"board":  boardID,
			"action": action,
		}).Error("board has no owner membership")
		return facts, fmt.Errorf("%w: board %s has no owner", models.ErrInconsistent, boardID)
	}
	facts.OwnerCount = owners
	return facts, nil
}

// loadTargetFacts adds the target user's membership to facts.
func loadTargetFacts(ctx context.Context, tx *db.Store, facts *access.Facts, actorID, boardID, targetID uuid.UUID) error {
	if !facts.BoardExists {
		return nil
	}
	role, err := roleOrNone(ctx, tx, boardID, targetID)
	if err != nil {
		return fmt.Errorf("load target role: %w", err)
	}
	facts.TargetFound = role != ""
	facts.TargetRole = role
	facts.TargetSelf = targetID == actorID
	return nil
}

func roleOrNone(ctx context.Context, tx *db.Store, boardID, userID uuid.UUID) (models.Role, error) {
	role, err := tx.Members.GetRole(ctx, boardID, userID)
	if errors.Is(err, models.ErrNotFound) {
		return "", nil
	}
	return role, err
}

func (s *BoardService) decide(facts access.Facts, actorID, boardID uuid.UUID) (access.Decision, error) {
	d := access.Authorize(facts)
	if !d.Allowed {
		s.log.WithFields(logrus.Fields{
			"actor":  actorID,
			"board":  boardID,
			"action": facts.Action,
			"reason": d.Detail,
		}).Debug("denied")
	}
	return d, d.Err()
}

// readGate checks a membership-gated read, serving the actor's role from the
// cache when it can. The cache generation is read before the database so a
// membership change committed in between keeps the loaded role out of the
// cache.
func (s *BoardService) readGate(ctx context.Context, action access.Action, actorID, boardID uuid.UUID) (models.Role, error) {
	if role, ok := s.roles.Get(ctx, boardID, actorID); ok {
		_, err := s.decide(access.Facts{Action: action, BoardExists: true, ActorRole: role}, actorID, boardID)
		return role, err
	}

	gen, genErr := s.roles.Generation(ctx, boardID)
	facts, err := s.loadFacts(ctx, s.store, action, actorID, boardID)
	if err != nil {
		return "", err
	}
	if _, err := s.decide(facts, actorID, boardID); err != nil {
		return "", err
	}
	if genErr == nil {
		s.roles.Set(ctx, boardID, actorID, facts.ActorRole, gen)
	}
	return facts.ActorRole, nil
}

func (s *BoardService) evict(ctx context.Context, boardID uuid.UUID, userIDs ...uuid.UUID) {
	if err := s.roles.Evict(ctx, boardID, userIDs...); err != nil {
		s.log.WithField("board", boardID).WithError(err).Warn("role cache eviction failed")
	}
}

func (s *BoardService) CreateBoard(ctx context.Context, actorID uuid.UUID, name string) (*models.BoardWithRole, error) {
	name, err := validBoardName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.decide(access.Facts{Action: access.ActionCreateBoard}, actorID, uuid.Nil); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	board := &models.Board{
		ID:        uuid.New(),
		OwnerID:   actorID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	gen, genErr := s.roles.Generation(ctx, board.ID)
	owner, err := s.store.CreateBoard(ctx, board)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		s.roles.Set(ctx, board.ID, actorID, owner.Role, gen)
	}
	return &models.BoardWithRole{Board: *board, Role: owner.Role}, nil
}

// ListBoards returns every board the actor belongs to with the actor's role.
func (s *BoardService) ListBoards(ctx context.Context, actorID uuid.UUID) ([]*models.BoardWithRole, error) {
	return s.store.Members.ListBoardsForUser(ctx, actorID)
}

// ListOwnedBoards returns the boards the actor created.
func (s *BoardService) ListOwnedBoards(ctx context.Context, actorID uuid.UUID) ([]*models.Board, error) {
	return s.store.Boards.ListByOwner(ctx, actorID)
}

func (s *BoardService) GetBoard(ctx context.Context, actorID, boardID uuid.UUID) (*models.BoardWithRole, error) {
	role, err := s.readGate(ctx, access.ActionViewBoard, actorID, boardID)
	if err != nil {
		return nil, err
	}
	board, err := s.store.Boards.GetByID(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return &models.BoardWithRole{Board: *board, Role: role}, nil
}

// MaxBoardNameLength bounds board names on create and rename.
const MaxBoardNameLength = 100

func validBoardName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: board name is required", models.ErrInvalidInput)
	}
	if len(name) > MaxBoardNameLength {
		return "", fmt.Errorf("%w: board name must be <= %d characters", models.ErrInvalidInput, MaxBoardNameLength)
	}
	return name, nil
}

// RenameBoard changes the board's name. Owners and admins only.
func (s *BoardService) RenameBoard(ctx context.Context, actorID, boardID uuid.UUID, name string) (*models.BoardWithRole, error) {
	var board *models.Board
	var role models.Role
	err := s.store.InTx(ctx, func(tx *db.Store) error {
		if err := lockBoard(ctx, tx, boardID); err != nil {
			return err
		}
		facts, err := s.loadFacts(ctx, tx, access.ActionUpdateBoard, actorID, boardID)
		if err != nil {
			return err
		}
		if _, err := s.decide(facts, actorID, boardID); err != nil {
			return err
		}
		role = facts.ActorRole
		valid, err := validBoardName(name)
		if err != nil {
			return err
		}
		board, err = tx.Boards.Rename(ctx, boardID, valid)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(boardID, events.Event{Type: events.BoardUpdated, Payload: board})
	return &models.BoardWithRole{Board: *board, Role: role}, nil
}

// DeleteBoard removes the board with its memberships and tasks, then closes
// every websocket subscribed to it.
func (s *BoardService) DeleteBoard(ctx context.Context, actorID, boardID uuid.UUID) error {
	var members []*models.Member
	err := s.store.InTx(ctx, func(tx *db.Store) error {
		if err := lockBoard(ctx, tx, boardID); err != nil {
			return err
		}
		facts, err := s.loadFacts(ctx, tx, access.ActionDeleteBoard, actorID, boardID)
		if err != nil {
			return err
		}
		if _, err := s.decide(facts, actorID, boardID); err != nil {
			return err
		}
		if members, err = tx.Members.ListMembers(ctx, boardID); err != nil {
			return err
		}
		return tx.Boards.Delete(ctx, boardID)
	})
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	s.evict(ctx, boardID, ids...)
	s.events.Publish(boardID, events.Event{Type: events.BoardDeleted})
	s.events.Disconnect(boardID)
	return nil
}

func (s *BoardService) ListMembers(ctx context.Context, actorID, boardID uuid.UUID) ([]*models.Member, error) {
	if _, err := s.readGate(ctx, access.ActionListMembers, actorID, boardID); err != nil {
		return nil, err
	}
	return s.store.Members.ListMembers(ctx, boardID)
}

// InviteMember adds the user matching usernameOrEmail to the board with the
// requested role. Only owners and admins may invite, and only owners may
// grant the owner role.
func (s *BoardService) InviteMember(ctx context.Context, actorID, boardID uuid.UUID, usernameOrEmail, role string) (*models.Member, error) {
	var member *models.Member
	err := s.store.InTx(ctx, func(tx *db.Store) error {
		if err := lockBoard(ctx, tx, boardID); err != nil {
			return err
		}
		facts, err := s.loadFacts(ctx, tx, access.ActionInviteMember, actorID, boardID)
		if err != nil {
			return err
		}
		facts.RequestRole = role

		target, err := tx.Users.FindByUsernameOrEmail(ctx, strings.TrimSpace(usernameOrEmail))
		switch {
		case errors.Is(err, models.ErrNotFound):
		case err != nil:
			return fmt.Errorf("resolve invitee: %w", err)
		default:
			if err := loadTargetFacts(ctx, tx, &facts, actorID, boardID, target.ID); err != nil {
				return err
			}
			facts.TargetFound = true
		}

		d, err := s.decide(facts, actorID, boardID)
		if err != nil {
			return err
		}
		m, err := tx.Members.Add(ctx, boardID, target.ID, d.Role)
		if err != nil {
			return err
		}
		member = &models.Member{Membership: *m, Username: target.Username, Email: target.Email}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.evict(ctx, boardID, member.UserID)
	s.events.Publish(boardID, events.Event{Type: events.MemberAdded, Payload: member})
	return member, nil
}

// ChangeRole sets the target member's role. Owner only. The last owner cannot
// be demoted.
func (s *BoardService) ChangeRole(ctx context.Context, actorID, boardID, targetID uuid.UUID, newRole string) (*models.Membership, error) {
	var updated *models.Membership
	err := s.store.InTx(ctx, func(tx *db.Store) error {
		if err := lockBoard(ctx, tx, boardID); err != nil {
			return err
		}
		facts, err := s.loadFacts(ctx, tx, access.ActionChangeRole, actorID, boardID)
		if err != nil {
			return err
		}
		facts.RequestRole = newRole
		if err := loadTargetFacts(ctx, tx, &facts, actorID, boardID, targetID); err != nil {
			return err
		}

		d, err := s.decide(facts, actorID, boardID)
		if err != nil {
			return err
		}
		updated, err = tx.Members.ChangeRole(ctx, boardID, targetID, d.Role)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.evict(ctx, boardID, targetID)
	s.events.Publish(boardID, events.Event{Type: events.MemberRoleChanged, Payload: updated})
	return updated, nil
}

// RemoveMember deletes the target's membership. A member may always remove
// themselves unless they are the last owner.
func (s *BoardService) RemoveMember(ctx context.Context, actorID, boardID, targetID uuid.UUID) error {
	err := s.store.InTx(ctx, func(tx *db.Store) error {
		if err := lockBoard(ctx, tx, boardID); err != nil {
			return err
		}
		facts, err := s.loadFacts(ctx, tx, access.ActionRemoveMember, actorID, boardID)
		if err != nil {
			return err
		}
		if err := loadTargetFacts(ctx, tx, &facts, actorID, boardID, targetID); err != nil {
			return err
		}
		if _, err := s.decide(facts, actorID, boardID); err != nil {
			return err
		}
		return tx.Members.Remove(ctx, boardID, targetID)
	})
	if err != nil {
		return err
	}

	s.evict(ctx, boardID, targetID)
	s.events.Publish(boardID, events.Event{
		Type:    events.MemberRemoved,
		Payload: map[string]uuid.UUID{"user_id": targetID},
	})
	s.events.Disconnect(boardID, targetID)
	return nil
}

// AuthorizeSubscribe checks that the actor may receive the board's events.
func (s *BoardService) AuthorizeSubscribe(ctx context.Context, actorID, boardID uuid.UUID) error {
	_, err := s.readGate(ctx, access.ActionSubscribe, actorID, boardID)
	return err
}

// lockBoard takes the board row lock for the rest of the transaction. A
// missing board is left for the access engine to report.
func lockBoard(ctx context.Context, tx *db.Store, boardID uuid.UUID) error {
	if err := tx.Boards.Touch(ctx, boardID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return nil
}

type noCache struct{}

func (noCache) Get(context.Context, uuid.UUID, uuid.UUID) (models.Role, bool) { return "", false }
func (noCache) Generation(context.Context, uuid.UUID) (int64, error)          { return 0, nil }
func (noCache) Set(context.Context, uuid.UUID, uuid.UUID, models.Role, int64) {}
func (noCache) Evict(context.Context, uuid.UUID, ...uuid.UUID) error          { return nil }

type noPublisher struct{}

func (noPublisher) Publish(uuid.UUID, events.Event)     {}
func (noPublisher) Disconnect(uuid.UUID, ...uuid.UUID) {}
