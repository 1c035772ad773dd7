package handlers

import (
	"net/http"

	"habitquest-api/internal/repository"
	"habitquest-api/internal/services"
)

const (
	dailyBonusEndpoint = "bonus/daily"
	dailyBonusGold     = 50
)

type BonusHandler struct {
	quotaService services.QuotaService
	userRepo     repository.UserRepository
}

func NewBonusHandler(quotaService services.QuotaService, userRepo repository.UserRepository) *BonusHandler {
	return &BonusHandler{
		quotaService: quotaService,
		userRepo:     userRepo,
	}
}

// ClaimDailyBonus grants the once-per-day gold bonus. The persisted window
// counter is the guard: limit 1, day window, shared across instances.
func (h *BonusHandler) ClaimDailyBonus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := services.UserFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	decision, err := h.quotaService.AllowWithLimit(ctx, user.ID.String(), dailyBonusEndpoint, 1)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error checking daily bonus")
		return
	}
	if !decision.Allowed {
		respondQuotaExceeded(w, decision.ResetAt)
		return
	}

	if err := h.userRepo.AddGold(ctx, user.ID, dailyBonusGold); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error granting bonus")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"gold_awarded": dailyBonusGold,
		"next_bonus":   decision.ResetAt,
	})
}
