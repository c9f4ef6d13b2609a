// Package plans implements the public pricing catalog endpoint.
package plans

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/response"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/sl"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
)

type Service interface {
	ListPlans(ctx context.Context, category models.PlanCategory) ([]*models.PricingPlan, error)
}

type Handler struct {
	log     *slog.Logger
	catalog Service
}

func New(log *slog.Logger, catalog Service) *Handler {
	return &Handler{log: log, catalog: catalog}
}

// ServeHTTP godoc
// @Summary List pricing plans
// @Description Returns the plan catalog, optionally filtered by category.
// @Tags Subscriptions
// @Produce  json
// @Param planType query string false "Plan category (individual or organization)"
// @Success 200 {object} response.Response "Plan list"
// @Failure 400 {object} response.Response "Unknown category"
// @Failure 500 {object} response.Response "Catalog unavailable"
// @Router /subscriptions/plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.plans"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	category := models.PlanCategory(r.URL.Query().Get("planType"))
	switch category {
	case "", models.CategoryIndividual, models.CategoryOrganization:
	default:
		response.Error(w, r, http.StatusBadRequest, "unknown plan category")
		return
	}

	plans, err := h.catalog.ListPlans(r.Context(), category)
	if err != nil {
		log.Error("failed to list plans", sl.Err(err))
		response.Error(w, r, http.StatusInternalServerError, "failed to list plans")
		return
	}

	response.OK(w, r, http.StatusOK, "plans retrieved successfully", plans)
}
