package models

import (
	"time"
)

// FounderInventory is a singleton row tracking the capped founder tier.
// Remaining is only ever changed through atomic conditional updates.
type FounderInventory struct {
	ID            uint `gorm:"primarykey"`
	TotalCapacity int  `gorm:"not null"`
	Remaining     int  `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (FounderInventory) TableName() string {
	return "founder_inventory"
}
