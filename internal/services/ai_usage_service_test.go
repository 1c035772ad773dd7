package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"habitquest-api/internal/config"
	"habitquest-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAIUsageRepo struct {
	entries   []models.AIUsageLog
	appendErr error
	countErr  error
}

func (f *fakeAIUsageRepo) Append(_ context.Context, entry *models.AIUsageLog) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAIUsageRepo) CountSince(_ context.Context, userID, feature string, since time.Time) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	var count int64
	for _, e := range f.entries {
		if e.UserID == userID && e.Feature == feature && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func newAIService(repo *fakeAIUsageRepo, now time.Time) *aiUsageService {
	svc := NewAIUsageService(repo, config.NewQuotaConfig()).(*aiUsageService)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCheckAIRateLimitCountsOnlyToday(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	repo := &fakeAIUsageRepo{
		entries: []models.AIUsageLog{
			// Yesterday's calls and other features must not count.
			{UserID: "u1", Feature: config.FeatureQuestTransform, CreatedAt: now.AddDate(0, 0, -1)},
			{UserID: "u1", Feature: config.FeatureBackstory, CreatedAt: now},
			{UserID: "u2", Feature: config.FeatureQuestTransform, CreatedAt: now},
			{UserID: "u1", Feature: config.FeatureQuestTransform, CreatedAt: now.Add(-2 * time.Hour)},
			{UserID: "u1", Feature: config.FeatureQuestTransform, CreatedAt: now.Add(-time.Minute)},
		},
	}
	svc := newAIService(repo, now)

	result, err := svc.CheckAIRateLimit(context.Background(), "u1", config.FeatureQuestTransform)
	require.NoError(t, err)

	assert.True(t, result.Allowed)
	assert.Equal(t, 2, result.UsedToday)
	assert.Equal(t, 20, result.Limit)
	assert.Equal(t, 18, result.Remaining)
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), result.ResetAt)
}

func TestCheckAIRateLimitDeniesAtLimit(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	repo := &fakeAIUsageRepo{}
	for i := 0; i < 5; i++ {
		repo.entries = append(repo.entries, models.AIUsageLog{
			UserID: "u1", Feature: config.FeatureBackstory, CreatedAt: now.Add(-time.Duration(i) * time.Minute),
		})
	}
	svc := newAIService(repo, now)

	result, err := svc.CheckAIRateLimit(context.Background(), "u1", config.FeatureBackstory)
	require.NoError(t, err)

	assert.False(t, result.Allowed)
	assert.Equal(t, 5, result.UsedToday)
	assert.Equal(t, 0, result.Remaining)
}

func TestCheckAIRateLimitUnknownFeatureDenied(t *testing.T) {
	svc := newAIService(&fakeAIUsageRepo{}, time.Now())

	result, err := svc.CheckAIRateLimit(context.Background(), "u1", "no_such_feature")
	require.NoError(t, err)

	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Limit)
}

func TestCheckAIRateLimitFailsOpen(t *testing.T) {
	repo := &fakeAIUsageRepo{countErr: errors.New("connection refused")}
	svc := newAIService(repo, time.Now())

	result, err := svc.CheckAIRateLimit(context.Background(), "u1", config.FeatureQuestTransform)
	require.NoError(t, err)

	assert.True(t, result.Allowed)
}

func TestLogAIUsageSwallowsFailure(t *testing.T) {
	repo := &fakeAIUsageRepo{appendErr: errors.New("insert failed")}
	svc := newAIService(repo, time.Now())

	// Must not panic or surface the error in any way.
	svc.LogAIUsage(context.Background(), "u1", config.FeatureQuestTransform, models.JSON{"quest_id": "q1"})
	assert.Empty(t, repo.entries)
}

func TestLogAIUsageAppendsRow(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	repo := &fakeAIUsageRepo{}
	svc := newAIService(repo, now)

	svc.LogAIUsage(context.Background(), "u1", config.FeatureQuestTransform, models.JSON{"quest_id": "q1"})

	require.Len(t, repo.entries, 1)
	assert.Equal(t, "u1", repo.entries[0].UserID)
	assert.Equal(t, config.FeatureQuestTransform, repo.entries[0].Feature)
	assert.Equal(t, now, repo.entries[0].CreatedAt)
}
