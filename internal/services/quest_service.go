package services

import (
	"context"
	"time"

	"habitquest-api/internal/llm"
	"habitquest-api/internal/models"
	"habitquest-api/internal/pkg/errors"
	"habitquest-api/internal/repository"

	"github.com/google/uuid"
)

const (
	questXPReward   = 25
	questGoldReward = 10
	xpPerLevel      = 100

	// Streak lookups only need a bounded history.
	streakHorizon = 90 * 24 * time.Hour
)

type QuestService interface {
	// TransformTask asks the language model to dress the task up as a
	// quest and persists it for the user.
	TransformTask(ctx context.Context, userID uuid.UUID, task string) (*models.Quest, error)

	// CompleteQuest marks the quest done and applies XP, gold, level and
	// streak updates to its owner.
	CompleteQuest(ctx context.Context, userID uuid.UUID, questID uuid.UUID) (*models.User, error)

	ListQuests(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Quest, error)
}

type questService struct {
	questRepo   repository.QuestRepository
	userRepo    repository.UserRepository
	transformer llm.Transformer
	now         func() time.Time
}

func NewQuestService(questRepo repository.QuestRepository, userRepo repository.UserRepository, transformer llm.Transformer) QuestService {
	return &questService{
		questRepo:   questRepo,
		userRepo:    userRepo,
		transformer: transformer,
		now:         time.Now,
	}
}

func (s *questService) TransformTask(ctx context.Context, userID uuid.UUID, task string) (*models.Quest, error) {
	text, err := s.transformer.TransformTask(ctx, task)
	if err != nil {
		return nil, err
	}

	quest := &models.Quest{
		ID:           uuid.New(),
		UserID:       userID,
		OriginalTask: task,
		Title:        text.Title,
		Narrative:    text.Narrative,
		XPReward:     questXPReward,
		GoldReward:   questGoldReward,
		Status:       models.QuestActive,
	}

	if err := s.questRepo.Create(ctx, quest); err != nil {
		return nil, err
	}

	return quest, nil
}

func (s *questService) CompleteQuest(ctx context.Context, userID uuid.UUID, questID uuid.UUID) (*models.User, error) {
	quest, err := s.questRepo.GetByID(ctx, questID)
	if err != nil {
		return nil, err
	}
	if quest.UserID != userID {
		return nil, errors.ErrNotFound
	}

	now := s.now()
	if err := s.questRepo.MarkCompleted(ctx, questID, now); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	days, err := s.questRepo.CompletionDays(ctx, userID, now.Add(-streakHorizon))
	if err != nil {
		return nil, err
	}
	days = append(days, now)

	newXP := user.XP + quest.XPReward
	newLevel := LevelForXP(newXP)
	streak := ComputeStreak(days, now)

	if err := s.userRepo.ApplyQuestReward(ctx, userID, quest.XPReward, quest.GoldReward, newLevel, streak); err != nil {
		return nil, err
	}

	return s.userRepo.GetByID(ctx, userID)
}

func (s *questService) ListQuests(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Quest, error) {
	return s.questRepo.ListByUser(ctx, userID, limit, offset)
}

// LevelForXP maps total XP to a level, one level per 100 XP.
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return 1 + xp/xpPerLevel
}

// ComputeStreak counts consecutive calendar days with at least one quest
// completion, ending today. Completing nothing today but something
// yesterday keeps yesterday's streak alive.
func ComputeStreak(completions []time.Time, now time.Time) int {
	if len(completions) == 0 {
		return 0
	}

	seen := make(map[string]bool, len(completions))
	for _, c := range completions {
		seen[c.Format("2006-01-02")] = true
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !seen[day.Format("2006-01-02")] {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for seen[day.Format("2006-01-02")] {
		streak++
		day = day.AddDate(0, 0, -1)
	}

	return streak
}
