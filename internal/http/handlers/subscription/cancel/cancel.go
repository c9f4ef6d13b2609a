// Package cancel implements subscription cancellation.
package cancel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/middlewarectx"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
)

type Service interface {
	Cancel(ctx context.Context, userUID string) error
}

type Handler struct {
	log     *slog.Logger
	billing Service
}

func New(log *slog.Logger, billingService Service) *Handler {
	return &Handler{log: log, billing: billingService}
}

// ServeHTTP godoc
// @Summary Cancel the subscription
// @Description Moves the caller's account and live subscription records to cancelled.
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} response.Response "Cancelled"
// @Failure 401 {object} response.Response "Not authenticated"
// @Failure 500 {object} response.Response "Cancellation failed"
// @Security BearerAuth
// @Router /subscriptions/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		response.Error(w, r, http.StatusUnauthorized, "user identification missing")
		return
	}

	if err := h.billing.Cancel(r.Context(), userUID); err != nil {
		log.Error("failed to cancel subscription", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to cancel subscription")
		return
	}

	response.OK(w, r, http.StatusOK, "subscription cancelled successfully", nil)
}
