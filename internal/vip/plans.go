package vip

import (
	"time"

	"github.com/sells-group/barberfinder/internal/model"
)

// Plan describes a purchasable VIP tier.
type Plan struct {
	ID           model.VIPPlan `json:"id"`
	Name         string        `json:"name"`
	PriceBRL     float64       `json:"price_brl"`
	DurationDays int           `json:"duration_days"`
	Features     []string      `json:"features"`
}

// Plans lists the available tiers.
var Plans = map[model.VIPPlan]Plan{
	model.VIPPlanBasic: {
		ID:           model.VIPPlanBasic,
		Name:         "Individual Barber",
		PriceBRL:     19.90,
		DurationDays: 30,
		Features: []string{
			"Featured at the top of the list",
			"Gold map marker",
			"Unlimited schedule",
			"Reviews enabled",
			"Priority support",
		},
	},
	model.VIPPlanPremium: {
		ID:           model.VIPPlanPremium,
		Name:         "Large Barbershop",
		PriceBRL:     39.90,
		DurationDays: 30,
		Features: []string{
			"Everything in the basic plan",
			"Up to 5 barbers",
			"Advanced statistics",
			"Premium map highlight",
			"24/7 VIP support",
		},
	},
}

// ExpiresAt returns when a subscription to plan bought at from ends. Unknown
// plans fall back to the basic duration.
func ExpiresAt(plan model.VIPPlan, from time.Time) time.Time {
	p, ok := Plans[plan]
	if !ok {
		p = Plans[model.VIPPlanBasic]
	}
	return from.AddDate(0, 0, p.DurationDays)
}
