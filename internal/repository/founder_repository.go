package repository

import (
	"context"

	"habitquest-api/internal/models"
	"habitquest-api/internal/pkg/errors"

	"gorm.io/gorm"
)

type FounderRepository interface {
	Get(ctx context.Context) (*models.FounderInventory, error)

	// Claim decrements the remaining count by one, failing with
	// ErrFounderSoldOut when nothing is left. The guard lives in the
	// WHERE clause so two concurrent claims can never both take the
	// last spot.
	Claim(ctx context.Context) error

	// Adjust applies a capacity delta (positive or negative) to both
	// total capacity and remaining.
	Adjust(ctx context.Context, delta int) (*models.FounderInventory, error)
}

type founderRepository struct {
	db *gorm.DB
}

func NewFounderRepository(db *gorm.DB) FounderRepository {
	return &founderRepository{db: db}
}

func (r *founderRepository) Get(ctx context.Context) (*models.FounderInventory, error) {
	var inventory models.FounderInventory
	err := r.db.WithContext(ctx).First(&inventory).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load founder inventory")
	}
	return &inventory, nil
}

func (r *founderRepository) Claim(ctx context.Context) error {
	result := r.db.WithContext(ctx).Model(&models.FounderInventory{}).
		Where("remaining > 0").
		Update("remaining", gorm.Expr("remaining - 1"))

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to claim founder spot")
	}

	if result.RowsAffected == 0 {
		return errors.ErrFounderSoldOut
	}

	return nil
}

func (r *founderRepository) Adjust(ctx context.Context, delta int) (*models.FounderInventory, error) {
	var inventory models.FounderInventory

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&inventory).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.ErrNotFound
			}
			return err
		}

		if inventory.TotalCapacity+delta < 0 || inventory.Remaining+delta < 0 {
			return errors.ErrInvalidInput
		}

		inventory.TotalCapacity += delta
		inventory.Remaining += delta
		return tx.Save(&inventory).Error
	})
	if err != nil {
		return nil, err
	}

	return &inventory, nil
}
