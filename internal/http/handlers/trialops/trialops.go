// Package trialops implements the admin surface over trial accounts:
// running the lifecycle sweep on demand, account statistics, listing active
// trials and extending a trial.
package trialops

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/dateutil"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/services/sweep"
)

// SweepService runs the lifecycle sweep and reports statistics.
type SweepService interface {
	Sweep(ctx context.Context) error
	CollectStatistics(ctx context.Context) (*sweep.Statistics, error)
}

// TrialService mutates individual trials.
type TrialService interface {
	ExtendTrial(ctx context.Context, userUID string, days int) (*models.User, error)
}

// UserLister lists the accounts currently on trial.
type UserLister interface {
	ListActiveTrials(ctx context.Context, from time.Time) ([]*models.User, error)
}

type Handler struct {
	log      *slog.Logger
	sweeps   SweepService
	trials   TrialService
	users    UserLister
	validate *validator.Validate
}

func New(log *slog.Logger, sweeps SweepService, trials TrialService, users UserLister) *Handler {
	return &Handler{
		log:      log,
		sweeps:   sweeps,
		trials:   trials,
		users:    users,
		validate: validator.New(),
	}
}

// TriggerCheck godoc
// @Summary Run the lifecycle sweep now
// @Description Admin-only. Executes the same sweep the scheduler runs hourly.
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response "Sweep finished"
// @Failure 403 {object} response.Response "Not an admin"
// @Failure 500 {object} response.Response "Sweep failed"
// @Security BearerAuth
// @Router /trial/trigger-check [post]
func (h *Handler) TriggerCheck(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trialops.trigger"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := h.sweeps.Sweep(r.Context()); err != nil {
		log.Error("manual sweep failed", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "sweep failed")
		return
	}

	response.OK(w, r, http.StatusOK, "sweep completed successfully", nil)
}

// Statistics godoc
// @Summary Account statistics
// @Description Admin-only. Counts accounts per lifecycle state.
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response "Counts per state"
// @Failure 403 {object} response.Response "Not an admin"
// @Failure 500 {object} response.Response "Lookup failed"
// @Security BearerAuth
// @Router /trial/statistics [get]
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trialops.statistics"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	stats, err := h.sweeps.CollectStatistics(r.Context())
	if err != nil {
		log.Error("failed to collect statistics", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to collect statistics")
		return
	}

	response.OK(w, r, http.StatusOK, "statistics retrieved successfully", stats)
}

// trialUser is the admin view of one trial account.
type trialUser struct {
	UserUID      string     `json:"user_uid"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	TrialEndDate *time.Time `json:"trial_end_date"`
}

// Users godoc
// @Summary List active trials
// @Description Admin-only. Returns accounts currently on trial with their end dates.
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response "Trial accounts"
// @Failure 403 {object} response.Response "Not an admin"
// @Failure 500 {object} response.Response "Lookup failed"
// @Security BearerAuth
// @Router /trial/users [get]
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trialops.users"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	users, err := h.users.ListActiveTrials(r.Context(), dateutil.StartOfDay(time.Now()))
	if err != nil {
		log.Error("failed to list trial users", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to list trial users")
		return
	}

	result := make([]trialUser, 0, len(users))
	for _, u := range users {
		result = append(result, trialUser{
			UserUID:      u.UID,
			Email:        u.Email,
			Username:     u.Username,
			TrialEndDate: u.TrialEndDate,
		})
	}

	response.OK(w, r, http.StatusOK, "trial users retrieved successfully", result)
}

// ExtendRequest carries the number of extra trial days.
type ExtendRequest struct {
	Days int `json:"days" validate:"required,gt=0,lte=365"`
}

// Extend godoc
// @Summary Extend a trial
// @Description Admin-only. Pushes the user's trial end date forward and returns the account to trial.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param userId path string true "Account uid"
// @Param request body ExtendRequest true "Extension length"
// @Success 200 {object} response.Response "New trial window"
// @Failure 400 {object} response.Response "Malformed or invalid body"
// @Failure 403 {object} response.Response "Not an admin"
// @Failure 500 {object} response.Response "Extension failed"
// @Security BearerAuth
// @Router /trial/extend/{userId} [post]
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trialops.extend"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID := chi.URLParam(r, "userId")
	if userUID == "" {
		response.Error(w, r, http.StatusBadRequest, "missing user id")
		return
	}

	var req ExtendRequest
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

	user, err := h.trials.ExtendTrial(r.Context(), userUID, req.Days)
	if err != nil {
		log.Error("failed to extend trial", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to extend trial")
		return
	}

	response.OK(w, r, http.StatusOK, "trial extended successfully", map[string]any{
		"user_uid":            user.UID,
		"subscription_status": user.SubscriptionStatus,
		"trial_end_date":      user.TrialEndDate,
	})
}
