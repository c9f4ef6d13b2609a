// Package trial implements the explicit trial activation endpoint. The call
// is idempotent: repeating it never moves the trial end date.
package trial

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/middlewarectx"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
)

type Service interface {
	StartTrial(ctx context.Context, userUID string) (*models.User, error)
}

type Handler struct {
	log     *slog.Logger
	billing Service
}

func New(log *slog.Logger, billingService Service) *Handler {
	return &Handler{log: log, billing: billingService}
}

// ServeHTTP godoc
// @Summary Activate the free trial
// @Description Opens the trial window for the caller. Safe to repeat; an existing window is returned unchanged.
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} response.Response "Trial window"
// @Failure 401 {object} response.Response "Not authenticated"
// @Failure 500 {object} response.Response "Activation failed"
// @Security BearerAuth
// @Router /subscriptions/trial [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.trial"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		response.Error(w, r, http.StatusUnauthorized, "user identification missing")
		return
	}

	user, err := h.billing.StartTrial(r.Context(), userUID)
	if err != nil {
		log.Error("failed to start trial", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to start trial")
		return
	}

	response.OK(w, r, http.StatusOK, "trial is active", map[string]any{
		"subscription_status": user.SubscriptionStatus,
		"trial_end_date":      user.TrialEndDate,
	})
}
