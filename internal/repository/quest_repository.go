package repository

import (
	"context"
	"time"

	"habitquest-api/internal/models"
	"habitquest-api/internal/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestRepository interface {
	Create(ctx context.Context, quest *models.Quest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quest, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Quest, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) error
	CompletionDays(ctx context.Context, userID uuid.UUID, since time.Time) ([]time.Time, error)
}

type questRepository struct {
	db *gorm.DB
}

func NewQuestRepository(db *gorm.DB) QuestRepository {
	return &questRepository{db: db}
}

func (r *questRepository) Create(ctx context.Context, quest *models.Quest) error {
	if err := r.db.WithContext(ctx).Create(quest).Error; err != nil {
		return errors.Wrap(err, "failed to create quest")
	}
	return nil
}

func (r *questRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Quest, error) {
	var quest models.Quest
	err := r.db.WithContext(ctx).First(&quest, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get quest")
	}
	return &quest, nil
}

func (r *questRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Quest, error) {
	var quests []models.Quest
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&quests).Error
	return quests, err
}

// MarkCompleted flips an active quest to completed. The status guard makes
// completion idempotent: a second call affects no rows.
func (r *questRepository) MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Quest{}).
		Where("id = ? AND status = ?", id, models.QuestActive).
		Updates(map[string]interface{}{
			"status":       models.QuestCompleted,
			"completed_at": completedAt,
		})

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to complete quest")
	}

	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}

	return nil
}

func (r *questRepository) CompletionDays(ctx context.Context, userID uuid.UUID, since time.Time) ([]time.Time, error) {
	var days []time.Time
	err := r.db.WithContext(ctx).Model(&models.Quest{}).
		Where("user_id = ? AND status = ? AND completed_at >= ?", userID, models.QuestCompleted, since).
		Order("completed_at DESC").
		Pluck("completed_at", &days).Error
	return days, err
}
