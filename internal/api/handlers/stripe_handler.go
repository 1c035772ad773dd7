package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"habitquest-api/internal/logger"
	apperrors "habitquest-api/internal/pkg/errors"
	"habitquest-api/internal/repository"
	"habitquest-api/internal/services"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"
)

const (
	PurchaseTypeFounder = "founder"
	PurchaseTypeGold    = "gold"

	ErrUserNotFound    = "user not found"
	ErrNoStripeID      = "user doesn't have a Stripe ID"
	ErrInvalidPurchase = "invalid purchase type"
	ErrCreateCheckout  = "error creating checkout session"
)

type StripeHandler struct {
	authService    services.AuthService
	founderService services.FounderService
	userRepo       repository.UserRepository
}

func NewStripeHandler(authService services.AuthService, founderService services.FounderService, userRepo repository.UserRepository) *StripeHandler {
	return &StripeHandler{
		authService:    authService,
		founderService: founderService,
		userRepo:       userRepo,
	}
}

type checkoutRequest struct {
	PurchaseType string `json:"purchaseType"`
	GoldPack     string `json:"goldPack,omitempty"`
}

// HandleCreateCheckout starts a Stripe checkout for either the one-time
// founder tier or a gold pack. The founder cap is only enforced at webhook
// time; a sold-out checkout fails there.
func (h *StripeHandler) HandleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if user.StripeID == "" {
		respondWithError(w, http.StatusBadRequest, ErrNoStripeID)
		return
	}

	priceID, err := priceIDForPurchase(req.PurchaseType, req.GoldPack)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(user.StripeID),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String("https://www.habitquest.app/success"),
		CancelURL:  stripe.String("https://www.habitquest.app/cancel"),
	}
	params.AddMetadata("purchase_type", req.PurchaseType)
	if req.PurchaseType == PurchaseTypeGold {
		params.AddMetadata("gold_amount", goldAmountForPack(req.GoldPack))
	}

	s, err := session.New(params)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrCreateCheckout)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"sessionId": s.ID})
}

func priceIDForPurchase(purchaseType, goldPack string) (string, error) {
	switch purchaseType {
	case PurchaseTypeFounder:
		return os.Getenv("STRIPE_FOUNDER_PRICE_ID"), nil
	case PurchaseTypeGold:
		switch goldPack {
		case "small":
			return os.Getenv("STRIPE_GOLD_SMALL_PRICE_ID"), nil
		case "large":
			return os.Getenv("STRIPE_GOLD_LARGE_PRICE_ID"), nil
		}
		return "", errors.New("invalid gold pack")
	default:
		return "", errors.New(ErrInvalidPurchase)
	}
}

func goldAmountForPack(pack string) string {
	if pack == "large" {
		return "2500"
	}
	return "500"
}

func (h *StripeHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Logger.WithField("error", err.Error()).Error("Error reading webhook body")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), os.Getenv("STRIPE_WEBHOOK_SECRET"))
	if err != nil {
		logger.Logger.WithField("error", err.Error()).Error("Error verifying webhook signature")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var checkoutSession stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &checkoutSession); err != nil {
			logger.Logger.WithField("error", err.Error()).Error("Error parsing webhook JSON")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.handleCheckoutCompleted(r.Context(), checkoutSession)
	default:
		logger.Logger.WithField("type", event.Type).Debug("Unhandled webhook event type")
	}

	w.WriteHeader(http.StatusOK)
}

func (h *StripeHandler) handleCheckoutCompleted(ctx context.Context, checkoutSession stripe.CheckoutSession) {
	user, err := h.authService.GetUserByStripeCustomerID(ctx, checkoutSession.Customer.ID)
	if err != nil {
		logger.Logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"customer": checkoutSession.Customer.ID,
		}).Error("Error retrieving user for checkout")
		return
	}

	switch checkoutSession.Metadata["purchase_type"] {
	case PurchaseTypeFounder:
		if err := h.founderService.ClaimSpot(ctx, user); err != nil {
			fields := logrus.Fields{"user": user.ID}
			if apperrors.Is(err, apperrors.ErrFounderSoldOut) {
				// Payment landed after the cap filled; support has to
				// refund manually, so make the log loud.
				logger.Logger.WithFields(fields).Error("Founder purchase completed but inventory is sold out")
				return
			}
			fields["error"] = err.Error()
			logger.Logger.WithFields(fields).Error("Error claiming founder spot")
		}
	case PurchaseTypeGold:
		amount, err := strconv.Atoi(checkoutSession.Metadata["gold_amount"])
		if err != nil || amount <= 0 {
			logger.Logger.WithFields(logrus.Fields{
				"user":   user.ID,
				"amount": checkoutSession.Metadata["gold_amount"],
			}).Error("Gold purchase with invalid amount metadata")
			return
		}
		if err := h.userRepo.AddGold(ctx, user.ID, amount); err != nil {
			logger.Logger.WithFields(logrus.Fields{
				"error": err.Error(),
				"user":  user.ID,
			}).Error("Error crediting gold purchase")
		}
	default:
		logger.Logger.WithFields(logrus.Fields{
			"customer": checkoutSession.Customer.ID,
			"type":     checkoutSession.Metadata["purchase_type"],
		}).Error("Checkout completed with unknown purchase type")
	}
}
