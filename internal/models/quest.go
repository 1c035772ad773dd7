package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestStatus string

const (
	QuestActive    QuestStatus = "ACTIVE"
	QuestCompleted QuestStatus = "COMPLETED"
)

type Quest struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	OriginalTask string         `gorm:"type:text;not null" json:"original_task"`
	Title        string         `gorm:"type:varchar(255);not null" json:"title"`
	Narrative    string         `gorm:"type:text" json:"narrative"`
	XPReward     int            `gorm:"not null" json:"xp_reward"`
	GoldReward   int            `gorm:"not null" json:"gold_reward"`
	Status       QuestStatus    `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	CompletedAt  *time.Time     `gorm:"default:null" json:"completed_at"`
	CreatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Quest) TableName() string {
	return "quests"
}

func (q *Quest) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}

	now := time.Now()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = now
	}

	return nil
}

func (q *Quest) BeforeUpdate(tx *gorm.DB) error {
	q.UpdatedAt = time.Now()
	return nil
}
