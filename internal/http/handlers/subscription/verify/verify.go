// Package verify implements payment verification, the checkout callback of
// both the gateway flow (signature) and the manual UPI flow (transaction
// reference).
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/middlewarectx"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/services/billing"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/storage/repository"
)

type Service interface {
	VerifyPayment(ctx context.Context, userUID string, req models.DummyVerify) (*models.Subscription, error)
}

type Handler struct {
	log     *slog.Logger
	billing Service
}

func New(log *slog.Logger, billingService Service) *Handler {
	return &Handler{log: log, billing: billingService}
}

// ServeHTTP godoc
// @Summary Verify a payment
// @Description Verifies the gateway signature or a manual transaction reference and activates the subscription.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body models.DummyVerify true "Verification data"
// @Success 200 {object} response.Response "Subscription activated"
// @Failure 400 {object} response.Response "Malformed body or failed verification"
// @Failure 401 {object} response.Response "Not authenticated"
// @Failure 404 {object} response.Response "No pending order"
// @Failure 500 {object} response.Response "Verification failed"
// @Security BearerAuth
// @Router /subscriptions/verify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.verify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		response.Error(w, r, http.StatusUnauthorized, "user identification missing")
		return
	}

	var req models.DummyVerify
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.billing.VerifyPayment(r.Context(), userUID, req)
	switch {
	case errors.Is(err, billing.ErrVerificationFailed):
		log.Error("payment verification rejected", slog.String("user_uid", userUID))
		response.Error(w, r, http.StatusBadRequest, "payment verification failed")
		return
	case errors.Is(err, repository.ErrNotFound):
		response.Error(w, r, http.StatusNotFound, "no pending order found")
		return
	case err != nil:
		log.Error("failed to verify payment", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to verify payment")
		return
	}

	response.OK(w, r, http.StatusOK, "payment verified successfully", sub)
}
