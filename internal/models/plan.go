package models

// PlanCategory separates individual plans from multi-seat organization plans.
type PlanCategory string

// Plan categories.
const (
	CategoryIndividual   PlanCategory = "individual"
	CategoryOrganization PlanCategory = "organization"
)

// PricingPlan is one entry of the seeded catalog. Prices are whole rupees;
// conversion to the gateway's minor unit happens only inside the gateway
// adapter. For organization plans the effective amount is
// OrganizationBasePrice + MemberPrice per seat.
type PricingPlan struct {
	ID                    int          `json:"id"`
	Name                  string       `json:"name"`
	Type                  Plan         `json:"type"`
	Price                 int          `json:"price"`
	DiscountPercentage    int          `json:"discount_percentage"`
	Features              []string     `json:"features"`
	Category              PlanCategory `json:"plan_category"`
	OrganizationBasePrice int          `json:"organization_base_price,omitempty"`
	MemberPrice           int          `json:"member_price,omitempty"`
}

// EffectivePrice returns the individual price after discount.
func (p PricingPlan) EffectivePrice() int {
	return p.Price - p.Price*p.DiscountPercentage/100
}

// OrganizationPrice returns the amount for an organization with the given
// number of seats, after discount.
func (p PricingPlan) OrganizationPrice(seats int) int {
	total := p.OrganizationBasePrice + p.MemberPrice*seats
	return total - total*p.DiscountPercentage/100
}
