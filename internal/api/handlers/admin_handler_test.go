package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"habitquest-api/internal/models"
	"habitquest-api/internal/repository"
	"habitquest-api/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRateLimitRepo struct {
	rows         []models.RateLimitWindow
	clearedUser  string
	clearedEndpt string
	clearCalls   int
}

func (s *stubRateLimitRepo) Increment(_ context.Context, _, _ string, _ time.Time) (int, error) {
	return 0, nil
}

func (s *stubRateLimitRepo) CurrentCount(_ context.Context, _, _ string, _ time.Time) (*models.RateLimitWindow, error) {
	return nil, nil
}

func (s *stubRateLimitRepo) ListWindows(_ context.Context, _, _ string, _ time.Time, _ int) ([]models.RateLimitWindow, error) {
	return s.rows, nil
}

func (s *stubRateLimitRepo) EndpointTotals(_ context.Context, _ time.Time) ([]repository.EndpointLoad, error) {
	return []repository.EndpointLoad{{Endpoint: "quests", Requests: 42}}, nil
}

func (s *stubRateLimitRepo) TopConsumers(_ context.Context, _ time.Time, _ int) ([]repository.ConsumerUsage, error) {
	return []repository.ConsumerUsage{{UserID: "u1", Email: "u1@example.com", Endpoint: "quests", Requests: 42}}, nil
}

func (s *stubRateLimitRepo) Clear(_ context.Context, userID, endpoint string) (int64, error) {
	s.clearCalls++
	s.clearedUser = userID
	s.clearedEndpt = endpoint
	return 2, nil
}

type stubFounderService struct {
	inventory   models.FounderInventory
	adjustCalls int
	lastAction  string
	lastAmount  int
	lastReason  string
}

func (s *stubFounderService) Status(_ context.Context) (*models.FounderInventory, error) {
	inv := s.inventory
	return &inv, nil
}

func (s *stubFounderService) ClaimSpot(_ context.Context, _ *models.User) error { return nil }

func (s *stubFounderService) AdjustInventory(_ context.Context, _, action string, amount int, reason string) (*models.FounderInventory, error) {
	s.adjustCalls++
	s.lastAction = action
	s.lastAmount = amount
	s.lastReason = reason

	delta := amount
	if action == services.AdjustActionRemove {
		delta = -amount
	}
	s.inventory.TotalCapacity += delta
	s.inventory.Remaining += delta
	inv := s.inventory
	return &inv, nil
}

type stubCacheService struct {
	setCalls int
}

func (s *stubCacheService) Get(_ context.Context, _ string) (string, error) {
	return "", errors.New("cache miss")
}

func (s *stubCacheService) Set(_ context.Context, _ string, _ interface{}, _ time.Duration) error {
	s.setCalls++
	return nil
}

func (s *stubCacheService) Delete(_ context.Context, _ string) error          { return nil }
func (s *stubCacheService) DeleteByPattern(_ context.Context, _ string) error { return nil }

func newAdminHandler() (*AdminHandler, *stubRateLimitRepo, *stubFounderService, *stubCacheService) {
	repo := &stubRateLimitRepo{}
	founder := &stubFounderService{inventory: models.FounderInventory{TotalCapacity: 25, Remaining: 10}}
	cache := &stubCacheService{}
	return NewAdminHandler(repo, founder, cache), repo, founder, cache
}

func adminRequest(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)

	admin := &models.User{ID: uuid.New(), Email: "admin@example.com", Role: "admin"}
	ctx := services.WithUserAndSubscriptionContext(req.Context(), admin, nil)
	return req.WithContext(ctx)
}

func TestGetRateLimitsReturnsRowsAndStats(t *testing.T) {
	handler, repo, _, cache := newAdminHandler()
	repo.rows = []models.RateLimitWindow{
		{UserID: "u1", Endpoint: "quests", RequestCount: 7},
	}

	rec := httptest.NewRecorder()
	handler.GetRateLimits(rec, adminRequest(http.MethodGet, "/admin/rate-limits?limit=50", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rows  []models.RateLimitWindow `json:"rows"`
		Stats struct {
			EndpointTotals []repository.EndpointLoad  `json:"endpoint_totals"`
			TopConsumers   []repository.ConsumerUsage `json:"top_consumers"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Len(t, body.Rows, 1)
	assert.Equal(t, 7, body.Rows[0].RequestCount)
	require.Len(t, body.Stats.EndpointTotals, 1)
	assert.Equal(t, int64(42), body.Stats.EndpointTotals[0].Requests)
	require.Len(t, body.Stats.TopConsumers, 1)
	assert.Equal(t, "u1@example.com", body.Stats.TopConsumers[0].Email)
	assert.Equal(t, 1, cache.setCalls, "aggregates should be cached on a miss")
}

func TestClearRateLimitValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"missing user", map[string]string{"endpoint": "quests"}, "userId is required"},
		{"missing endpoint", map[string]string{"userId": "u1"}, "endpoint is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler, repo, _, _ := newAdminHandler()

			rec := httptest.NewRecorder()
			handler.ClearRateLimit(rec, adminRequest(http.MethodPost, "/admin/rate-limits/clear", tc.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
			assert.Zero(t, repo.clearCalls, "a rejected request must not clear anything")
		})
	}
}

func TestClearRateLimit(t *testing.T) {
	handler, repo, _, _ := newAdminHandler()

	rec := httptest.NewRecorder()
	handler.ClearRateLimit(rec, adminRequest(http.MethodPost, "/admin/rate-limits/clear", map[string]string{
		"userId":   "u1",
		"endpoint": "quests",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", repo.clearedUser)
	assert.Equal(t, "quests", repo.clearedEndpt)
	assert.Contains(t, rec.Body.String(), `"cleared":2`)
}

func TestAdjustFounderInventoryValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{"unknown action", map[string]interface{}{"action": "reset", "amount": 5, "reason": "x"}, "action must be"},
		{"zero amount", map[string]interface{}{"action": "add", "amount": 0, "reason": "x"}, "amount must be positive"},
		{"missing reason", map[string]interface{}{"action": "remove", "amount": 5}, "reason is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler, _, founder, _ := newAdminHandler()

			rec := httptest.NewRecorder()
			handler.AdjustFounderInventory(rec, adminRequest(http.MethodPost, "/admin/founder-inventory", tc.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
			assert.Zero(t, founder.adjustCalls, "a rejected request must not adjust the inventory")
		})
	}
}

func TestAdjustFounderInventory(t *testing.T) {
	handler, _, founder, _ := newAdminHandler()

	rec := httptest.NewRecorder()
	handler.AdjustFounderInventory(rec, adminRequest(http.MethodPost, "/admin/founder-inventory", map[string]interface{}{
		"action": "remove",
		"amount": 5,
		"reason": "chargeback cleanup",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.AdjustActionRemove, founder.lastAction)
	assert.Equal(t, 5, founder.lastAmount)
	assert.Equal(t, "chargeback cleanup", founder.lastReason)

	var inventory models.FounderInventory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inventory))
	assert.Equal(t, 20, inventory.TotalCapacity)
	assert.Equal(t, 5, inventory.Remaining)
}

func TestAdjustFounderInventoryRequiresUser(t *testing.T) {
	handler, _, founder, _ := newAdminHandler()

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(map[string]interface{}{"action": "add", "amount": 1, "reason": "x"})
	req := httptest.NewRequest(http.MethodPost, "/admin/founder-inventory", &buf)

	rec := httptest.NewRecorder()
	handler.AdjustFounderInventory(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, founder.adjustCalls)
}

func TestGetFounderInventory(t *testing.T) {
	handler, _, _, _ := newAdminHandler()

	rec := httptest.NewRecorder()
	handler.GetFounderInventory(rec, adminRequest(http.MethodGet, "/admin/founder-inventory", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var inventory models.FounderInventory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inventory))
	assert.Equal(t, 25, inventory.TotalCapacity)
	assert.Equal(t, 10, inventory.Remaining)
}
