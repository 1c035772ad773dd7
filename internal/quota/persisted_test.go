package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWindowRepo mimics the database's atomic upsert-increment with a
// mutex-guarded map.
type fakeWindowRepo struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newFakeWindowRepo() *fakeWindowRepo {
	return &fakeWindowRepo{counts: make(map[string]int)}
}

func (f *fakeWindowRepo) key(userID, endpoint string, start time.Time) string {
	return userID + "|" + endpoint + "|" + start.Format(time.RFC3339)
}

func (f *fakeWindowRepo) Increment(_ context.Context, userID, endpoint string, start time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(userID, endpoint, start)
	f.counts[k]++
	return f.counts[k], nil
}

func (f *fakeWindowRepo) CurrentCount(_ context.Context, userID, endpoint string, start time.Time) (int, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	count, ok := f.counts[f.key(userID, endpoint, start)]
	return count, ok, nil
}

func TestPersistedStoreConsume(t *testing.T) {
	repo := newFakeWindowRepo()
	store := NewPersistedStore(repo, "quests/transform")
	store.now = func() time.Time { return time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	for n := 1; n <= 3; n++ {
		decision, err := store.Consume(ctx, "user-1", 3, 24*time.Hour)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 3-n, decision.Remaining)
	}

	decision, err := store.Consume(ctx, "user-1", 3, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)

	// Denied calls must not have been counted.
	count, _, err := repo.CurrentCount(ctx, "user-1", "quests/transform", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestPersistedStoreDayBoundaryReset(t *testing.T) {
	repo := newFakeWindowRepo()
	store := NewPersistedStore(repo, "bonus/daily")
	current := time.Date(2025, 6, 1, 23, 50, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	ctx := context.Background()

	decision, err := store.Consume(ctx, "user-1", 1, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), decision.ResetAt)

	decision, err = store.Consume(ctx, "user-1", 1, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// Ten minutes later the wall-clock day flips and the count restarts.
	current = time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC)

	decision, err = store.Consume(ctx, "user-1", 1, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestPersistedStoreKeysAreIndependent(t *testing.T) {
	repo := newFakeWindowRepo()
	store := NewPersistedStore(repo, "quests/transform")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		store.Consume(ctx, "heavy-user", 5, 24*time.Hour)
	}

	decision, err := store.Consume(ctx, "other-user", 5, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 4, decision.Remaining)
}

func TestPersistedStoreParallelIncrementsSum(t *testing.T) {
	repo := newFakeWindowRepo()
	store := NewPersistedStore(repo, "quests/transform")
	fixed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	const parallel = 50
	var wg sync.WaitGroup
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Consume(ctx, "user-1", parallel*2, 24*time.Hour)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	count, _, err := repo.CurrentCount(ctx, "user-1", "quests/transform", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, parallel, count)
}
