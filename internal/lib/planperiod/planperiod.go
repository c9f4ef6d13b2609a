// Package planperiod maps billing plans to subscription durations.
package planperiod

import (
	"time"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/models"
)

// Months returns the length of one billing period in calendar months.
// Unknown plans fall back to one month.
func Months(plan models.Plan) int {
	switch plan {
	case models.PlanMonthly:
		return 1
	case models.PlanQuarterly:
		return 3
	case models.PlanHalfYearly:
		return 6
	case models.PlanYearly:
		return 12
	default:
		return 1
	}
}

// EndDate returns the end of the paid window opened at start for the given
// plan.
func EndDate(start time.Time, plan models.Plan) time.Time {
	return start.AddDate(0, Months(plan), 0)
}
