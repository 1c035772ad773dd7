package quota

import (
	"context"
	"time"
)

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Checker answers whether a key has exceeded its allowed call count for a
// window, and how many calls remain. Backends differ in scope: the in-memory
// store is per-instance and best-effort, persisted backends are as consistent
// as the database's atomic increment.
type Checker interface {
	// Check reads the current state without counting the call.
	Check(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)

	// Consume counts the call if it is allowed. When the returned decision
	// is not allowed the count is left untouched.
	Consume(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}
