package mediadb

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

// ErrNotFound is returned by lookup-by-key operations when no row matches.
var ErrNotFound = errors.New("record not found")

// Store provides database operations over the embedded media metadata store.
type Store struct {
	db *bun.DB
}

// NewStore creates a new store over an open bun connection
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying bun connection for advanced queries
func (s *Store) DB() *bun.DB {
	return s.db
}

// Ping verifies the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// NewSession opens a fresh persistence session. A session carries at most one
// open transaction chain and is not safe for concurrent use.
func (s *Store) NewSession() *Session {
	return &Session{db: s.db}
}
