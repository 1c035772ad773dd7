package services

import (
	"context"
	"sync"
	"time"

	"habitquest-api/internal/config"
	"habitquest-api/internal/logger"
	"habitquest-api/internal/models"
	"habitquest-api/internal/quota"
	"habitquest-api/internal/repository"

	"github.com/sirupsen/logrus"
)

// QuotaService guards authenticated endpoints with the persisted window
// counter. Limits depend on the caller's subscription plan; the counter
// survives restarts and is shared across instances.
type QuotaService interface {
	// Allow counts one request for the user on the endpoint, rejecting
	// when the plan's daily limit is spent. On storage failure the
	// configured policy decides between allowing and rejecting.
	Allow(ctx context.Context, userID string, plan models.SubscriptionPlan, endpoint string) (quota.Decision, error)

	// AllowWithLimit is Allow with an explicit limit instead of the
	// plan's, for endpoints with their own cap (the daily bonus is
	// 1/day regardless of plan).
	AllowWithLimit(ctx context.Context, userID, endpoint string, limit int) (quota.Decision, error)

	// Usage reports the current window without counting a request, for
	// client display.
	Usage(ctx context.Context, userID string, plan models.SubscriptionPlan, endpoint string) (quota.Decision, error)
}

type quotaService struct {
	mu     sync.Mutex
	stores map[string]quota.Checker
	repo   repository.RateLimitRepository
	cfg    *config.QuotaConfig
}

func NewQuotaService(repo repository.RateLimitRepository, cfg *config.QuotaConfig) QuotaService {
	return &quotaService{
		stores: make(map[string]quota.Checker),
		repo:   repo,
		cfg:    cfg,
	}
}

// windowRepoAdapter narrows the repository to what the quota backend needs.
type windowRepoAdapter struct {
	repo repository.RateLimitRepository
}

func (a windowRepoAdapter) Increment(ctx context.Context, userID, endpoint string, windowStart time.Time) (int, error) {
	return a.repo.Increment(ctx, userID, endpoint, windowStart)
}

func (a windowRepoAdapter) CurrentCount(ctx context.Context, userID, endpoint string, windowStart time.Time) (int, bool, error) {
	window, err := a.repo.CurrentCount(ctx, userID, endpoint, windowStart)
	if err != nil {
		return 0, false, err
	}
	if window == nil {
		return 0, false, nil
	}
	return window.RequestCount, true, nil
}

func (s *quotaService) store(endpoint string) quota.Checker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if checker, ok := s.stores[endpoint]; ok {
		return checker
	}
	checker := quota.NewPersistedStore(windowRepoAdapter{repo: s.repo}, endpoint)
	s.stores[endpoint] = checker
	return checker
}

func (s *quotaService) Allow(ctx context.Context, userID string, plan models.SubscriptionPlan, endpoint string) (quota.Decision, error) {
	limit := s.cfg.LimitFor(plan)

	decision, err := s.store(endpoint).Consume(ctx, userID, limit, s.cfg.EndpointWindow)
	if err != nil {
		return s.onFailure(err, userID, endpoint, limit)
	}

	return decision, nil
}

func (s *quotaService) AllowWithLimit(ctx context.Context, userID, endpoint string, limit int) (quota.Decision, error) {
	decision, err := s.store(endpoint).Consume(ctx, userID, limit, s.cfg.EndpointWindow)
	if err != nil {
		return s.onFailure(err, userID, endpoint, limit)
	}
	return decision, nil
}

func (s *quotaService) Usage(ctx context.Context, userID string, plan models.SubscriptionPlan, endpoint string) (quota.Decision, error) {
	limit := s.cfg.LimitFor(plan)
	return s.store(endpoint).Check(ctx, userID, limit, s.cfg.EndpointWindow)
}

func (s *quotaService) onFailure(err error, userID, endpoint string, limit int) (quota.Decision, error) {
	logger.Logger.WithFields(logrus.Fields{
		"error":    err.Error(),
		"user":     userID,
		"endpoint": endpoint,
	}).Error("Rate limit check failed")

	if s.cfg.EndpointFailure == config.FailOpen {
		return quota.Decision{Allowed: true, Limit: limit, Remaining: 0, ResetAt: time.Now()}, nil
	}

	return quota.Decision{}, err
}
