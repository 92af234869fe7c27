package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func Connect(driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	if driverName == "sqlite3" {
		// sqlite has a single writer, and every :memory: connection is its own database
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Store groups the repositories over one connection pool or one transaction.
type Store struct {
	conn *sql.DB // nil when the store is bound to a transaction

	Users   *UserRepository
	Boards  *BoardRepository
	Members *MembershipRepository
	Tasks   *TaskRepository
}

func NewStore(conn *sql.DB) *Store {
	s := newStore(conn)
	s.conn = conn
	return s
}

func newStore(q DBTX) *Store {
	return &Store{
		Users:   NewUserRepository(q),
		Boards:  NewBoardRepository(q),
		Members: NewMembershipRepository(q),
		Tasks:   NewTaskRepository(q),
	}
}

// InTx runs fn against a store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Calling
// InTx on a store that is already transactional reuses that transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.conn == nil {
		return fn(s)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(newStore(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	return nil
}
