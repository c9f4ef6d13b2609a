// Package current implements the "my subscription" endpoint.
package current

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/middlewarectx"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/services/billing"
)

type Service interface {
	CurrentSubscription(ctx context.Context, userUID string) (*billing.CurrentResult, error)
}

type Handler struct {
	log     *slog.Logger
	billing Service
}

func New(log *slog.Logger, billingService Service) *Handler {
	return &Handler{log: log, billing: billingService}
}

// ServeHTTP godoc
// @Summary Get the caller's subscription
// @Description Returns the authoritative subscription record and the derived activity flag.
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} response.Response "Subscription view"
// @Failure 401 {object} response.Response "Not authenticated"
// @Failure 500 {object} response.Response "Lookup failed"
// @Security BearerAuth
// @Router /subscriptions/user [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.current"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		response.Error(w, r, http.StatusUnauthorized, "user identification missing")
		return
	}

	result, err := h.billing.CurrentSubscription(r.Context(), userUID)
	if err != nil {
		log.Error("failed to load subscription", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	response.OK(w, r, http.StatusOK, "subscription retrieved successfully", result)
}
