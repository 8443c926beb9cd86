package txmanager

import (
	"time"
)

// Context is the bookkeeping record for one begin()..commit()/rollback()
// span. Contexts live on a strictly LIFO stack; only the top of the stack is
// ever mutated.
type Context struct {
	ID           string
	StartTime    time.Time
	NestingLevel int
	IsNested     bool
	// ParentID references the enclosing context by id only; the parent owns
	// its own lifecycle.
	ParentID     string
	AffectedRows int64
	Err          error
	Completed    bool

	savepoint string
}

// Age reports how long the context has been open
func (c *Context) Age(now time.Time) time.Duration {
	return now.Sub(c.StartTime)
}
