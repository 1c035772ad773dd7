package quota

import (
	"context"
	"time"
)

// WindowRepo is the slice of the rate-limit repository the persisted
// backend needs.
type WindowRepo interface {
	Increment(ctx context.Context, userID, endpoint string, windowStart time.Time) (int, error)
	CurrentCount(ctx context.Context, userID, endpoint string, windowStart time.Time) (count int, found bool, err error)
}

// PersistedStore counts against database rows, one row per
// (user, endpoint, window). Unlike MemoryStore it survives restarts and is
// shared across instances; consistency is whatever the database's atomic
// upsert-increment provides. One store is bound to one endpoint name, the
// check key is the user id.
type PersistedStore struct {
	repo     WindowRepo
	endpoint string
	now      func() time.Time
}

func NewPersistedStore(repo WindowRepo, endpoint string) *PersistedStore {
	return &PersistedStore{
		repo:     repo,
		endpoint: endpoint,
		now:      time.Now,
	}
}

// windowStart aligns windows to local wall-clock boundaries: a 24h window
// starts at local midnight, shorter windows truncate to their own length.
func (s *PersistedStore) windowStart(window time.Duration) time.Time {
	now := s.now()
	if window >= 24*time.Hour {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}
	return now.Truncate(window)
}

func (s *PersistedStore) Check(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	start := s.windowStart(window)
	resetAt := start.Add(window)

	count, found, err := s.repo.CurrentCount(ctx, key, s.endpoint, start)
	if err != nil {
		return Decision{}, err
	}
	if !found {
		count = 0
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   limit < 0 || count < limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (s *PersistedStore) Consume(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	decision, err := s.Check(ctx, key, limit, window)
	if err != nil {
		return Decision{}, err
	}
	if !decision.Allowed {
		return decision, nil
	}

	start := s.windowStart(window)
	count, err := s.repo.Increment(ctx, key, s.endpoint, start)
	if err != nil {
		return Decision{}, err
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		// The increment is unconditional, so a burst racing past the
		// read check can overshoot by the number of in-flight requests;
		// the count itself never loses updates.
		Allowed:   limit < 0 || count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   start.Add(window),
	}, nil
}
