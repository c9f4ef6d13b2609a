// Package catalog serves the pricing plan catalog. The catalog is seeded
// into the database once on an empty table and cached in redis on read.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
)

const plansCacheTTL = 10 * time.Minute

// PlanRepository is the catalog store.
type PlanRepository interface {
	CountPlans(ctx context.Context) (int, error)
	CreatePlan(ctx context.Context, plan models.PricingPlan) (int, error)
	GetPlan(ctx context.Context, id int) (*models.PricingPlan, error)
	ListPlans(ctx context.Context, category models.PlanCategory) ([]*models.PricingPlan, error)
}

// Cache is the read-through cache for plan listings.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// Service serves and seeds the plan catalog.
type Service struct {
	plans PlanRepository
	cache Cache
	log   *slog.Logger
}

// New creates the catalog service. cache may be nil in tests.
func New(plans PlanRepository, cache Cache, log *slog.Logger) *Service {
	return &Service{plans: plans, cache: cache, log: log}
}

// defaultPlans is the built-in catalog written on first start.
func defaultPlans() []models.PricingPlan {
	individual := []string{
		"Unlimited patent searches",
		"Saved patent lists",
		"Smart search suggestions",
		"Export to PDF and CSV",
	}
	organization := append(individual,
		"Shared workspaces",
		"Member management",
		"Priority support",
	)
	return []models.PricingPlan{
		{Name: "Monthly", Type: models.PlanMonthly, Price: 1000, Features: individual, Category: models.CategoryIndividual},
		{Name: "Quarterly", Type: models.PlanQuarterly, Price: 2700, DiscountPercentage: 10, Features: individual, Category: models.CategoryIndividual},
		{Name: "Half-Yearly", Type: models.PlanHalfYearly, Price: 4800, DiscountPercentage: 15, Features: individual, Category: models.CategoryIndividual},
		{Name: "Yearly", Type: models.PlanYearly, Price: 8400, DiscountPercentage: 25, Features: individual, Category: models.CategoryIndividual},
		{Name: "Team Monthly", Type: models.PlanMonthly, Price: 0, Features: organization, Category: models.CategoryOrganization, OrganizationBasePrice: 2000, MemberPrice: 500},
		{Name: "Team Yearly", Type: models.PlanYearly, Price: 0, DiscountPercentage: 20, Features: organization, Category: models.CategoryOrganization, OrganizationBasePrice: 20000, MemberPrice: 5000},
	}
}

// Seed writes the default catalog if the table is empty. Restarts never
// duplicate or overwrite rows.
func (s *Service) Seed(ctx context.Context) error {
	const op = "catalog.Seed"

	count, err := s.plans.CountPlans(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if count > 0 {
		return nil
	}

	for _, plan := range defaultPlans() {
		if _, err := s.plans.CreatePlan(ctx, plan); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	s.log.Info("pricing plan catalog seeded", slog.Int("plans", len(defaultPlans())))
	return nil
}

// ListPlans returns the catalog, optionally filtered by category. Listings
// are cached per category.
func (s *Service) ListPlans(ctx context.Context, category models.PlanCategory) ([]*models.PricingPlan, error) {
	const op = "catalog.ListPlans"

	key := "plans:" + string(category)
	if s.cache != nil {
		var cached []*models.PricingPlan
		found, err := s.cache.Get(key, &cached)
		if err != nil {
			s.log.Error("plan cache read failed", slog.String("key", key))
		}
		if found {
			return cached, nil
		}
	}

	plans, err := s.plans.ListPlans(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(key, plans, plansCacheTTL); err != nil {
			s.log.Error("plan cache write failed", slog.String("key", key))
		}
	}
	return plans, nil
}

// GetPlan returns a single plan by id.
func (s *Service) GetPlan(ctx context.Context, id int) (*models.PricingPlan, error) {
	const op = "catalog.GetPlan"

	plan, err := s.plans.GetPlan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plan, nil
}
