package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
)

const planColumns = `id, name, plan_type, price, discount_percentage,
	      features, plan_category, organization_base_price, member_price`

func scanPlan(row interface{ Scan(...any) error }) (*models.PricingPlan, error) {
	p := &models.PricingPlan{}
	var planType, category string
	var features []byte
	if err := row.Scan(&p.ID, &p.Name, &planType, &p.Price, &p.DiscountPercentage,
		&features, &category, &p.OrganizationBasePrice, &p.MemberPrice); err != nil {
		return nil, err
	}
	p.Type = models.Plan(planType)
	p.Category = models.PlanCategory(category)
	if err := json.Unmarshal(features, &p.Features); err != nil {
		return nil, err
	}
	return p, nil
}

// CountPlans returns the catalog size, used by the seed-once check.
func (s *Storage) CountPlans(ctx context.Context) (int, error) {
	const op = "storage.CountPlans"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM pricing_plans`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// CreatePlan inserts one catalog entry and returns its ID.
func (s *Storage) CreatePlan(ctx context.Context, plan models.PricingPlan) (int, error) {
	const op = "storage.CreatePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	features, err := json.Marshal(plan.Features)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO pricing_plans (name, plan_type, price, discount_percentage,
		      features, plan_category, organization_base_price, member_price)
		  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		  RETURNING id`
	var newID int
	err = s.DB.QueryRowContext(ctx, query,
		plan.Name, string(plan.Type), plan.Price, plan.DiscountPercentage,
		features, string(plan.Category),
		plan.OrganizationBasePrice, plan.MemberPrice).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetPlan returns one catalog entry by ID.
func (s *Storage) GetPlan(ctx context.Context, id int) (*models.PricingPlan, error) {
	const op = "storage.GetPlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + planColumns + ` FROM pricing_plans WHERE id = $1`
	p, err := scanPlan(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ListPlans returns the catalog, optionally filtered by category.
func (s *Storage) ListPlans(ctx context.Context, category models.PlanCategory) ([]*models.PricingPlan, error) {
	const op = "storage.ListPlans"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + planColumns + `
		  FROM pricing_plans
		  WHERE $1 = '' OR plan_category = $1
		  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, string(category))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PricingPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
