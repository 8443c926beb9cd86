// Package txmanager provides nested-transaction bookkeeping over one
// persistence session. Nesting levels map onto savepoints; the context stack
// is strictly LIFO and guarded by a single lock.
package txmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otakulab/media-sync/internal/metrics"
)

// Session is the transaction surface the manager drives. mediadb.Session is
// the production implementation.
type Session interface {
	Begin(ctx context.Context) error
	BeginSavepoint(ctx context.Context, name string) error
	Commit(ctx context.Context) error
	ReleaseSavepoint(ctx context.Context, name string) error
	Rollback(ctx context.Context) error
	RollbackToSavepoint(ctx context.Context, name string) error
}

type stackEntry struct {
	txc  *Context
	sess Session
}

// Manager tracks a LIFO stack of transaction contexts over one logical chain
// of control. A single manager must not be shared across unrelated concurrent
// transaction chains.
type Manager struct {
	mu      sync.Mutex
	stack   []stackEntry
	timeout time.Duration
	logger  *zap.Logger

	commits   int64
	rollbacks int64

	now func() time.Time
}

// Stats is a point-in-time snapshot of manager counters
type Stats struct {
	Commits   int64
	Rollbacks int64
	Active    int
}

// NewManager creates a transaction manager. timeout <= 0 disables the stale
// context check.
func NewManager(timeout time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Begin opens a transaction context. nested requires an enclosing context and
// maps onto a savepoint; the outermost context opens a real transaction.
// A configured timeout is checked lazily here: any context that has outlived
// it is force-rolled-back (top of stack first) and a TimeoutError returned.
func (m *Manager) Begin(ctx context.Context, sess Session, nested bool) (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if nested && len(m.stack) == 0 {
		return nil, &NestingError{Reason: "nested transaction requires an active parent"}
	}
	if !nested && len(m.stack) > 0 {
		return nil, &TransactionError{Op: "begin", Reason: "a transaction is already active on this manager"}
	}

	if m.timeout > 0 {
		if breached := m.findBreachedLocked(); breached >= 0 {
			stale := m.stack[breached].txc
			age := stale.Age(m.now())
			m.evictLocked(ctx, breached)
			return nil, &TimeoutError{ContextID: stale.ID, Age: age, Timeout: m.timeout}
		}
	}

	depth := len(m.stack)
	txc := &Context{
		ID:           uuid.NewString(),
		StartTime:    m.now(),
		NestingLevel: depth,
		IsNested:     nested,
	}

	if nested {
		txc.ParentID = m.stack[depth-1].txc.ID
		txc.savepoint = fmt.Sprintf("sp_%d", depth)
		if err := sess.BeginSavepoint(ctx, txc.savepoint); err != nil {
			return nil, err
		}
	} else {
		if err := sess.Begin(ctx); err != nil {
			return nil, err
		}
	}

	m.stack = append(m.stack, stackEntry{txc: txc, sess: sess})
	metrics.TransactionDepth.Set(float64(len(m.stack)))
	m.logger.Debug("transaction context opened",
		zap.String("context_id", txc.ID),
		zap.Int("nesting_level", txc.NestingLevel),
		zap.Bool("nested", nested))
	return txc, nil
}

// Commit pops the top context and commits it: a savepoint release for nested
// contexts, a real commit for the outermost one.
func (m *Manager) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.stack) == 0 {
		return &TransactionError{Op: "commit", Reason: "no active transaction"}
	}

	entry := m.popLocked()
	txc := entry.txc

	var err error
	if txc.IsNested {
		err = entry.sess.ReleaseSavepoint(ctx, txc.savepoint)
	} else {
		err = entry.sess.Commit(ctx)
	}
	txc.Completed = true
	if err != nil {
		txc.Err = err
		return err
	}

	m.commits++
	metrics.TransactionsTotal.WithLabelValues("commit").Inc()
	m.logger.Debug("transaction context committed",
		zap.String("context_id", txc.ID),
		zap.Int64("affected_rows", txc.AffectedRows))
	return nil
}

// Rollback pops the top context and rolls it back, recording cause. Rolling
// back with an empty stack is a warned no-op, never an error.
func (m *Manager) Rollback(ctx context.Context, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.stack) == 0 {
		m.logger.Warn("rollback requested with no active transaction")
		return nil
	}

	entry := m.popLocked()
	m.rollbackEntryLocked(ctx, entry, cause)
	return nil
}

// IncrementAffectedRows adds n to the top context's row counter. A silent
// no-op when no context is active: instrumentation must never break the
// business logic around it.
func (m *Manager) IncrementAffectedRows(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return
	}
	m.stack[len(m.stack)-1].txc.AffectedRows += n
}

// Depth reports the current nesting depth
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}

// Stats returns a snapshot of manager counters
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Commits: m.commits, Rollbacks: m.rollbacks, Active: len(m.stack)}
}

// WithTransaction is the scoped form: begin, run fn, commit on success.
// On error or panic the context is rolled back and the failure propagated.
// This is the primary call site; Begin/Commit/Rollback are primitives for
// advanced callers.
func (m *Manager) WithTransaction(ctx context.Context, sess Session, nested bool, fn func(ctx context.Context) error) error {
	if _, err := m.Begin(ctx, sess, nested); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = m.Rollback(ctx, fmt.Errorf("panic in transaction scope: %v", r))
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		_ = m.Rollback(ctx, err)
		return err
	}
	return m.Commit(ctx)
}

// findBreachedLocked returns the index of the lowest stale context, -1 when
// none. Caller holds the lock.
func (m *Manager) findBreachedLocked() int {
	now := m.now()
	for i, entry := range m.stack {
		if entry.txc.Age(now) > m.timeout {
			return i
		}
	}
	return -1
}

// evictLocked force-rolls-back every context from the top of the stack down
// to and including index. Caller holds the lock.
func (m *Manager) evictLocked(ctx context.Context, index int) {
	for len(m.stack) > index {
		entry := m.popLocked()
		m.logger.Warn("force rolling back stale transaction context",
			zap.String("context_id", entry.txc.ID),
			zap.Duration("age", entry.txc.Age(m.now())),
			zap.Duration("timeout", m.timeout))
		m.rollbackEntryLocked(ctx, entry, &TimeoutError{
			ContextID: entry.txc.ID,
			Age:       entry.txc.Age(m.now()),
			Timeout:   m.timeout,
		})
	}
}

func (m *Manager) popLocked() stackEntry {
	top := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	metrics.TransactionDepth.Set(float64(len(m.stack)))
	return top
}

func (m *Manager) rollbackEntryLocked(ctx context.Context, entry stackEntry, cause error) {
	txc := entry.txc

	var err error
	if txc.IsNested {
		err = entry.sess.RollbackToSavepoint(ctx, txc.savepoint)
	} else {
		err = entry.sess.Rollback(ctx)
	}
	if err != nil {
		m.logger.Error("rollback failed",
			zap.String("context_id", txc.ID),
			zap.Error(err))
	}

	txc.Err = cause
	txc.Completed = true
	m.rollbacks++
	metrics.TransactionsTotal.WithLabelValues("rollback").Inc()
	m.logger.Debug("transaction context rolled back",
		zap.String("context_id", txc.ID),
		zap.NamedError("cause", cause))
}
