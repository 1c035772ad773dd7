package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"habitquest-api/internal/repository"
	"habitquest-api/internal/services"
)

const (
	adminUsageHorizon  = 48 * time.Hour
	adminStatsCacheKey = "admin:rate-limits:stats"
	adminStatsCacheTTL = time.Minute
)

type AdminHandler struct {
	rateLimitRepo  repository.RateLimitRepository
	founderService services.FounderService
	cacheService   services.CacheService
}

func NewAdminHandler(rateLimitRepo repository.RateLimitRepository, founderService services.FounderService, cacheService services.CacheService) *AdminHandler {
	return &AdminHandler{
		rateLimitRepo:  rateLimitRepo,
		founderService: founderService,
		cacheService:   cacheService,
	}
}

type rateLimitStats struct {
	EndpointTotals []repository.EndpointLoad  `json:"endpoint_totals"`
	TopConsumers   []repository.ConsumerUsage `json:"top_consumers"`
	GeneratedAt    time.Time                  `json:"generated_at"`
}

// GetRateLimits returns raw window rows filtered by the query parameters
// plus aggregate stats over the last 48 hours. Aggregates are cached
// briefly since the admin dashboard polls them.
func (h *AdminHandler) GetRateLimits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("userId")
	endpoint := r.URL.Query().Get("endpoint")

	limit := 100
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}

	since := time.Now().Add(-adminUsageHorizon)

	rows, err := h.rateLimitRepo.ListWindows(ctx, userID, endpoint, since, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error fetching rate limit windows")
		return
	}

	stats, err := h.loadStats(ctx, since)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error fetching rate limit stats")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"rows":  rows,
		"stats": stats,
	})
}

func (h *AdminHandler) loadStats(ctx context.Context, since time.Time) (*rateLimitStats, error) {
	if cached, err := h.cacheService.Get(ctx, adminStatsCacheKey); err == nil {
		var stats rateLimitStats
		if json.Unmarshal([]byte(cached), &stats) == nil {
			return &stats, nil
		}
	}

	totals, err := h.rateLimitRepo.EndpointTotals(ctx, since)
	if err != nil {
		return nil, err
	}

	consumers, err := h.rateLimitRepo.TopConsumers(ctx, since, 20)
	if err != nil {
		return nil, err
	}

	stats := &rateLimitStats{
		EndpointTotals: totals,
		TopConsumers:   consumers,
		GeneratedAt:    time.Now(),
	}

	// Cache failures only cost us a recomputation next poll.
	h.cacheService.Set(ctx, adminStatsCacheKey, stats, adminStatsCacheTTL)

	return stats, nil
}

type clearRateLimitRequest struct {
	UserID   string `json:"userId"`
	Endpoint string `json:"endpoint"`
}

// ClearRateLimit deletes a user's counter on one endpoint, as a manual
// support remedy.
func (h *AdminHandler) ClearRateLimit(w http.ResponseWriter, r *http.Request) {
	var req clearRateLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.UserID == "" {
		respondWithError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if req.Endpoint == "" {
		respondWithError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	cleared, err := h.rateLimitRepo.Clear(r.Context(), req.UserID, req.Endpoint)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error clearing rate limit")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"cleared": cleared,
	})
}

type adjustInventoryRequest struct {
	Action string `json:"action"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// AdjustFounderInventory applies a manual capacity correction with a
// mandatory audit reason.
func (h *AdminHandler) AdjustFounderInventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	admin, ok := services.UserFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req adjustInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Action != services.AdjustActionAdd && req.Action != services.AdjustActionRemove {
		respondWithError(w, http.StatusBadRequest, "action must be \"add\" or \"remove\"")
		return
	}
	if req.Amount <= 0 {
		respondWithError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if req.Reason == "" {
		respondWithError(w, http.StatusBadRequest, "reason is required")
		return
	}

	inventory, err := h.founderService.AdjustInventory(ctx, admin.Email, req.Action, req.Amount, req.Reason)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Adjustment rejected: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, inventory)
}

// GetFounderInventory reports the current founder cap.
func (h *AdminHandler) GetFounderInventory(w http.ResponseWriter, r *http.Request) {
	inventory, err := h.founderService.Status(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error fetching founder inventory")
		return
	}

	respondWithJSON(w, http.StatusOK, inventory)
}
