package migrations

import (
	"os"
	"strconv"

	"habitquest-api/internal/logger"
	"habitquest-api/internal/models"

	"gorm.io/gorm"
)

const defaultFounderCapacity = 100

// SeedFounderInventory creates the singleton founder inventory row when it
// doesn't exist yet. Capacity changes afterwards only happen through the
// admin adjustment endpoint.
func SeedFounderInventory(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.FounderInventory{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	capacity := defaultFounderCapacity
	if v, err := strconv.Atoi(os.Getenv("FOUNDER_CAPACITY")); err == nil && v > 0 {
		capacity = v
	}

	inventory := &models.FounderInventory{
		TotalCapacity: capacity,
		Remaining:     capacity,
	}

	if err := db.Create(inventory).Error; err != nil {
		return err
	}

	logger.Logger.WithField("capacity", capacity).Info("Seeded founder inventory")
	return nil
}
