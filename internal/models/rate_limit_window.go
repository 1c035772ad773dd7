package models

import (
	"time"
)

// RateLimitWindow is one counting window for one user on one endpoint.
// Rows are created on the first call inside a window and incremented on
// each subsequent call; the hot path never deletes them, queries filter
// to a recent horizon instead. The composite key backs the atomic
// upsert-increment, which is the only write path.
type RateLimitWindow struct {
	ID           uint      `gorm:"primarykey"`
	UserID       string    `gorm:"uniqueIndex:idx_rate_limit_key;not null"`
	Endpoint     string    `gorm:"uniqueIndex:idx_rate_limit_key;not null"`
	WindowStart  time.Time `gorm:"uniqueIndex:idx_rate_limit_key;index;not null"`
	RequestCount int       `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (RateLimitWindow) TableName() string {
	return "rate_limit_windows"
}
