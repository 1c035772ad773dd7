package services

import (
	"context"
	"time"

	"habitquest-api/internal/config"
	"habitquest-api/internal/logger"
	"habitquest-api/internal/models"
	"habitquest-api/internal/repository"

	"github.com/sirupsen/logrus"
)

// AIRateLimitResult is returned to callers (and clients) before an AI
// feature runs.
type AIRateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	UsedToday int       `json:"used_today"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
}

// AIUsageService derives AI quotas from the append-only usage log: one row
// per call, quota equals the count of today's rows. The reset boundary is
// local midnight, not a rolling 24h window.
type AIUsageService interface {
	CheckAIRateLimit(ctx context.Context, userID, feature string) (AIRateLimitResult, error)

	// LogAIUsage appends one usage row after a successful call. It is
	// best-effort: the user-facing action already succeeded, so a
	// telemetry failure is logged and swallowed, never surfaced.
	LogAIUsage(ctx context.Context, userID, feature string, metadata models.JSON)
}

type aiUsageService struct {
	repo repository.AIUsageRepository
	cfg  *config.QuotaConfig
	now  func() time.Time
}

func NewAIUsageService(repo repository.AIUsageRepository, cfg *config.QuotaConfig) AIUsageService {
	return &aiUsageService{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

func (s *aiUsageService) CheckAIRateLimit(ctx context.Context, userID, feature string) (AIRateLimitResult, error) {
	limit := s.cfg.AILimitFor(feature)

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	resetAt := midnight.AddDate(0, 0, 1)

	used, err := s.repo.CountSince(ctx, userID, feature, midnight)
	if err != nil {
		logger.Logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"user":    userID,
			"feature": feature,
		}).Error("AI usage check failed")

		if s.cfg.AIFailure == config.FailOpen {
			// Don't block legitimate users on an infrastructure hiccup.
			return AIRateLimitResult{Allowed: true, Remaining: limit, Limit: limit, ResetAt: resetAt}, nil
		}
		return AIRateLimitResult{}, err
	}

	remaining := limit - int(used)
	if remaining < 0 {
		remaining = 0
	}

	return AIRateLimitResult{
		Allowed:   int(used) < limit,
		Remaining: remaining,
		UsedToday: int(used),
		Limit:     limit,
		ResetAt:   resetAt,
	}, nil
}

func (s *aiUsageService) LogAIUsage(ctx context.Context, userID, feature string, metadata models.JSON) {
	entry := &models.AIUsageLog{
		UserID:    userID,
		Feature:   feature,
		Metadata:  metadata,
		CreatedAt: s.now(),
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		logger.Logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"user":    userID,
			"feature": feature,
		}).Error("Failed to log AI usage")
	}
}
