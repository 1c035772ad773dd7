package services

import (
	"context"
	"fmt"
	"os"

	"habitquest-api/internal/logger"
	"habitquest-api/internal/models"
	"habitquest-api/internal/pkg/errors"
	"habitquest-api/internal/repository"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

const (
	AdjustActionAdd    = "add"
	AdjustActionRemove = "remove"
)

// FounderService manages the capped founder tier: a singleton inventory row
// decremented atomically on claim, independent of the rate-limit mechanisms.
type FounderService interface {
	Status(ctx context.Context) (*models.FounderInventory, error)

	// ClaimSpot takes one spot for the user and upgrades their
	// subscription to the lifetime founder plan. Fails with
	// ErrFounderSoldOut when the cap is reached.
	ClaimSpot(ctx context.Context, user *models.User) error

	// AdjustInventory applies a manual capacity correction. The reason is
	// mandatory and written to the application log as the audit trail.
	AdjustInventory(ctx context.Context, adminEmail, action string, amount int, reason string) (*models.FounderInventory, error)
}

type founderService struct {
	founderRepo repository.FounderRepository
	subRepo     repository.SubscriptionRepository
}

func NewFounderService(founderRepo repository.FounderRepository, subRepo repository.SubscriptionRepository) FounderService {
	return &founderService{
		founderRepo: founderRepo,
		subRepo:     subRepo,
	}
}

func (s *founderService) Status(ctx context.Context) (*models.FounderInventory, error) {
	return s.founderRepo.Get(ctx)
}

func (s *founderService) ClaimSpot(ctx context.Context, user *models.User) error {
	if err := s.founderRepo.Claim(ctx); err != nil {
		return err
	}

	if err := s.subRepo.UpgradeToFounder(ctx, user.ID); err != nil {
		return err
	}

	logger.Logger.WithFields(logrus.Fields{
		"user":  user.ID,
		"email": user.Email,
	}).Info("Founder spot claimed")

	// Confirmation mail is best-effort.
	if err := s.sendFounderEmail(user.Email, user.Name); err != nil {
		logger.Logger.WithFields(logrus.Fields{
			"error": err.Error(),
			"user":  user.ID,
		}).Error("Failed to send founder confirmation email")
	}

	return nil
}

func (s *founderService) AdjustInventory(ctx context.Context, adminEmail, action string, amount int, reason string) (*models.FounderInventory, error) {
	if amount <= 0 {
		return nil, errors.ErrInvalidInput
	}
	if reason == "" {
		return nil, errors.ErrInvalidInput
	}

	var delta int
	switch action {
	case AdjustActionAdd:
		delta = amount
	case AdjustActionRemove:
		delta = -amount
	default:
		return nil, errors.ErrInvalidInput
	}

	inventory, err := s.founderRepo.Adjust(ctx, delta)
	if err != nil {
		return nil, err
	}

	logger.Logger.WithFields(logrus.Fields{
		"admin":          adminEmail,
		"action":         action,
		"amount":         amount,
		"reason":         reason,
		"total_capacity": inventory.TotalCapacity,
		"remaining":      inventory.Remaining,
	}).Info("Founder inventory adjusted")

	return inventory, nil
}

func (s *founderService) sendFounderEmail(email, name string) error {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	if apiKey == "" {
		return nil
	}

	from := mail.NewEmail("HabitQuest", "noreply@habitquest.app")
	subject := "Welcome, Founder!"
	to := mail.NewEmail(name, email)

	htmlContent := fmt.Sprintf(`
		<html>
		<body style="font-family: Arial, sans-serif; background-color: #1e1b4b; color: white; padding: 20px;">
			<div style="background-color: #312e81; padding: 20px; border-radius: 10px;">
				<h1 style="color: white;">Your Founder spot is secured</h1>
				<p>Thanks for backing HabitQuest, %s. Your account now carries the lifetime Founder plan with raised daily quest limits.</p>
				<a href="https://www.habitquest.app/quests" style="background-color: #4f46e5; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Back to your quests</a>
			</div>
		</body>
		</html>
	`, name)

	message := mail.NewSingleEmail(from, subject, to, "", htmlContent)
	client := sendgrid.NewSendClient(apiKey)
	response, err := client.Send(message)
	if err != nil {
		return err
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("error sending email: %v", response.Body)
	}

	return nil
}
