package mediadb

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Session is one persistence session: a transaction chain plus the CRUD
// surface the consistency engine writes through. Nesting is implemented with
// SQLite savepoints inside a single real transaction.
//
// A session serves one logical thread of control at a time.
type Session struct {
	db *bun.DB
	tx *bun.Tx
}

// idb returns the active transaction when one is open, the base connection
// otherwise. Reads outside a transaction are intentional for probes.
func (s *Session) idb() bun.IDB {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// InTransaction reports whether a real transaction is currently open
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

// Begin opens the outermost transaction
func (s *Session) Begin(ctx context.Context) error {
	if s.tx != nil {
		return fmt.Errorf("session already has an open transaction")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = &tx
	return nil
}

// BeginSavepoint establishes a named savepoint inside the open transaction
func (s *Session) BeginSavepoint(ctx context.Context, name string) error {
	if s.tx == nil {
		return fmt.Errorf("no open transaction for savepoint %q", name)
	}
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint %q: %w", name, err)
	}
	return nil
}

// Commit commits the outermost transaction
func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return fmt.Errorf("no open transaction to commit")
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReleaseSavepoint releases a named savepoint, folding its writes into the
// enclosing transaction
func (s *Session) ReleaseSavepoint(ctx context.Context, name string) error {
	if s.tx == nil {
		return fmt.Errorf("no open transaction for savepoint %q", name)
	}
	if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint %q: %w", name, err)
	}
	return nil
}

// Rollback aborts the outermost transaction
func (s *Session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return fmt.Errorf("no open transaction to roll back")
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// RollbackToSavepoint reverts to a named savepoint and destroys it. SQLite
// keeps the savepoint on its stack after ROLLBACK TO, so the release is part
// of the same operation.
func (s *Session) RollbackToSavepoint(ctx context.Context, name string) error {
	if s.tx == nil {
		return fmt.Errorf("no open transaction for savepoint %q", name)
	}
	if _, err := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to roll back to savepoint %q: %w", name, err)
	}
	if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint %q: %w", name, err)
	}
	return nil
}
