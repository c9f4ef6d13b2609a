// Package order implements payment order creation.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/middlewarectx"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/services/billing"
)

type Service interface {
	CreateOrder(ctx context.Context, userUID string, req models.DummyOrder) (*billing.OrderResult, error)
}

type Handler struct {
	log      *slog.Logger
	billing  Service
	validate *validator.Validate
}

func New(log *slog.Logger, billingService Service) *Handler {
	return &Handler{
		log:      log,
		billing:  billingService,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Create a payment order
// @Description Opens a gateway order (or manual pay link) for the chosen plan and parks the account in payment_pending.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body models.DummyOrder true "Order request"
// @Success 200 {object} response.Response "Order created"
// @Failure 400 {object} response.Response "Malformed or invalid body"
// @Failure 401 {object} response.Response "Not authenticated"
// @Failure 404 {object} response.Response "Unknown plan"
// @Failure 500 {object} response.Response "Order creation failed"
// @Security BearerAuth
// @Router /subscriptions/order [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.order"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		response.Error(w, r, http.StatusUnauthorized, "user identification missing")
		return
	}

	var req models.DummyOrder
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.ValidationError(w, r, err.(validator.ValidationErrors))
		return
	}

	result, err := h.billing.CreateOrder(r.Context(), userUID, req)
	if errors.Is(err, billing.ErrPlanNotFound) {
		response.Error(w, r, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		log.Error("failed to create order", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to create order")
		return
	}

	response.OK(w, r, http.StatusOK, "order created successfully", result)
}
