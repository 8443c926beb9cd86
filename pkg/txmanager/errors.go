package txmanager

import (
	"fmt"
	"time"
)

// TransactionError reports misuse of the manager, such as committing with no
// active transaction.
type TransactionError struct {
	Op     string
	Reason string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %s", e.Op, e.Reason)
}

// NestingError reports a nested begin without an enclosing transaction.
type NestingError struct {
	Reason string
}

func (e *NestingError) Error() string {
	return "transaction nesting: " + e.Reason
}

// TimeoutError reports a stale context detected during begin. The breached
// context has already been force-rolled-back when this is returned.
type TimeoutError struct {
	ContextID string
	Age       time.Duration
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction context %s exceeded timeout: open %s, limit %s",
		e.ContextID, e.Age.Round(time.Millisecond), e.Timeout)
}
