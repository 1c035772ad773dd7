package models

import (
	"time"
)

// AIUsageLog is append-only: one row per AI call, never mutated or
// deleted. Daily quota is derived by counting rows since local midnight.
type AIUsageLog struct {
	ID        uint      `gorm:"primarykey"`
	UserID    string    `gorm:"index:idx_ai_usage_user_feature;not null"`
	Feature   string    `gorm:"index:idx_ai_usage_user_feature;not null"`
	Metadata  JSON      `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"index;not null"`
}

func (AIUsageLog) TableName() string {
	return "ai_usage_logs"
}
