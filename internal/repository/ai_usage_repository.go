package repository

import (
	"context"
	"time"

	"habitquest-api/internal/models"

	"gorm.io/gorm"
)

type AIUsageRepository interface {
	// Append records one AI call. Rows are never mutated or deleted.
	Append(ctx context.Context, entry *models.AIUsageLog) error

	// CountSince counts the calls for (user, feature) created at or after
	// the given instant.
	CountSince(ctx context.Context, userID, feature string, since time.Time) (int64, error)
}

type aiUsageRepository struct {
	db *gorm.DB
}

func NewAIUsageRepository(db *gorm.DB) AIUsageRepository {
	return &aiUsageRepository{db: db}
}

func (r *aiUsageRepository) Append(ctx context.Context, entry *models.AIUsageLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *aiUsageRepository) CountSince(ctx context.Context, userID, feature string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AIUsageLog{}).
		Where("user_id = ? AND feature = ? AND created_at >= ?", userID, feature, since).
		Count(&count).Error
	return count, err
}
