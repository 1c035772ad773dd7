package repository

import (
	"context"
	"time"

	"habitquest-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EndpointLoad is the aggregate request volume for one endpoint.
type EndpointLoad struct {
	Endpoint string `json:"endpoint"`
	Requests int64  `json:"requests"`
}

// ConsumerUsage ranks one user's volume on one endpoint, joined with the
// user's email for the admin view.
type ConsumerUsage struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Endpoint string `json:"endpoint"`
	Requests int64  `json:"requests"`
}

type RateLimitRepository interface {
	// Increment counts one accepted request for (user, endpoint, window)
	// and returns the post-increment count. The increment is a single
	// upsert so concurrent requests never lose updates.
	Increment(ctx context.Context, userID, endpoint string, windowStart time.Time) (int, error)

	// CurrentCount returns the most recent window row for the pair at or
	// after windowStart, or nil when no call was made yet.
	CurrentCount(ctx context.Context, userID, endpoint string, windowStart time.Time) (*models.RateLimitWindow, error)

	ListWindows(ctx context.Context, userID, endpoint string, since time.Time, limit int) ([]models.RateLimitWindow, error)
	EndpointTotals(ctx context.Context, since time.Time) ([]EndpointLoad, error)
	TopConsumers(ctx context.Context, since time.Time, limit int) ([]ConsumerUsage, error)
	Clear(ctx context.Context, userID, endpoint string) (int64, error)
}

type rateLimitRepository struct {
	db *gorm.DB
}

func NewRateLimitRepository(db *gorm.DB) RateLimitRepository {
	return &rateLimitRepository{db: db}
}

func (r *rateLimitRepository) Increment(ctx context.Context, userID, endpoint string, windowStart time.Time) (int, error) {
	row := models.RateLimitWindow{
		UserID:       userID,
		Endpoint:     endpoint,
		WindowStart:  windowStart,
		RequestCount: 1,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "endpoint"}, {Name: "window_start"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"request_count": gorm.Expr("rate_limit_windows.request_count + 1"),
				"updated_at":    time.Now(),
			}),
		}).
		Clauses(clause.Returning{}).
		Create(&row).Error
	if err != nil {
		return 0, err
	}

	return row.RequestCount, nil
}

func (r *rateLimitRepository) CurrentCount(ctx context.Context, userID, endpoint string, windowStart time.Time) (*models.RateLimitWindow, error) {
	var window models.RateLimitWindow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ? AND window_start >= ?", userID, endpoint, windowStart).
		Order("window_start DESC").
		First(&window).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &window, nil
}

func (r *rateLimitRepository) ListWindows(ctx context.Context, userID, endpoint string, since time.Time, limit int) ([]models.RateLimitWindow, error) {
	var windows []models.RateLimitWindow

	query := r.db.WithContext(ctx).Where("window_start >= ?", since)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if endpoint != "" {
		query = query.Where("endpoint = ?", endpoint)
	}

	err := query.Order("window_start DESC").Limit(limit).Find(&windows).Error
	return windows, err
}

func (r *rateLimitRepository) EndpointTotals(ctx context.Context, since time.Time) ([]EndpointLoad, error) {
	var totals []EndpointLoad
	err := r.db.WithContext(ctx).Model(&models.RateLimitWindow{}).
		Select("endpoint, sum(request_count) as requests").
		Where("window_start >= ?", since).
		Group("endpoint").
		Order("requests DESC").
		Find(&totals).Error
	return totals, err
}

func (r *rateLimitRepository) TopConsumers(ctx context.Context, since time.Time, limit int) ([]ConsumerUsage, error) {
	var consumers []ConsumerUsage
	err := r.db.WithContext(ctx).Model(&models.RateLimitWindow{}).
		Select("rate_limit_windows.user_id, users.email, rate_limit_windows.endpoint, sum(rate_limit_windows.request_count) as requests").
		Joins("LEFT JOIN users ON users.id::text = rate_limit_windows.user_id").
		Where("rate_limit_windows.window_start >= ?", since).
		Group("rate_limit_windows.user_id, users.email, rate_limit_windows.endpoint").
		Order("requests DESC").
		Limit(limit).
		Find(&consumers).Error
	return consumers, err
}

// Clear drops every window row for the pair. Admin-only support remedy.
func (r *rateLimitRepository) Clear(ctx context.Context, userID, endpoint string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&models.RateLimitWindow{})
	return result.RowsAffected, result.Error
}
