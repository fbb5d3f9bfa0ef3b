package model

import (
	"a2z-marketplace/internal/domain"
)

type Tier string

const (
	TierFree     Tier = "free"
	TierPremium  Tier = "premium"
	TierBusiness Tier = "business"
)

type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
)

// SubscriptionPeriodDays is the length of every paid or trial period.
const SubscriptionPeriodDays = 30

// FreeCycleDays is the content-reset cycle of free accounts.
const FreeCycleDays = 7

// Rank orders tiers; unknown tiers rank below free.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 0
	case TierPremium:
		return 1
	case TierBusiness:
		return 2
	default:
		return -1
	}
}

func (t Tier) Valid() bool { return t.Rank() >= 0 }

// Paid reports whether the tier can be bought.
func (t Tier) Paid() bool { return t == TierPremium || t == TierBusiness }

// TierPolicy holds the limits and prices of one tier. Prices are ZAR cents.
// MaxListings == 0 means no cap.
type TierPolicy struct {
	Tier                   Tier  `json:"tier"`
	MaxListings            int   `json:"max_listings"`
	MaxImagesPerListing    int   `json:"max_images_per_listing"`
	ListingRetentionDays   int   `json:"listing_retention_days"`
	MonthlyPriceCents      int64 `json:"monthly_price_cents"`
	EarlyAdopterPriceCents int64 `json:"early_adopter_price_cents,omitempty"`
}

var policies = map[Tier]TierPolicy{
	TierFree: {
		Tier:                 TierFree,
		MaxListings:          5,
		MaxImagesPerListing:  3,
		ListingRetentionDays: FreeCycleDays,
	},
	TierPremium: {
		Tier:                   TierPremium,
		MaxListings:            50,
		MaxImagesPerListing:    8,
		ListingRetentionDays:   30,
		MonthlyPriceCents:      4900,
		EarlyAdopterPriceCents: 2900,
	},
	TierBusiness: {
		Tier:                   TierBusiness,
		MaxListings:            0,
		MaxImagesPerListing:    15,
		ListingRetentionDays:   90,
		MonthlyPriceCents:      9900,
		EarlyAdopterPriceCents: 5900,
	},
}

// PolicyFor returns the policy of a tier.
func PolicyFor(t Tier) (TierPolicy, error) {
	p, ok := policies[t]
	if !ok {
		return TierPolicy{}, domain.Invalid("tier", "unknown tier "+string(t))
	}
	return p, nil
}

// AllPolicies lists the policies ordered by rank.
func AllPolicies() []TierPolicy {
	return []TierPolicy{policies[TierFree], policies[TierPremium], policies[TierBusiness]}
}

// PriceFor returns the price in cents for one billing period.
// The early-adopter rate applies to monthly billing only.
func (p TierPolicy) PriceFor(earlyAdopter bool, cycle BillingCycle) (int64, error) {
	if cycle != BillingMonthly {
		return 0, domain.Invalid("billing", "unsupported billing cycle "+string(cycle))
	}
	if earlyAdopter && p.EarlyAdopterPriceCents > 0 {
		return p.EarlyAdopterPriceCents, nil
	}
	return p.MonthlyPriceCents, nil
}

// AllowsListings reports whether n active listings are within the cap.
func (p TierPolicy) AllowsListings(n int) bool {
	return p.MaxListings == 0 || n <= p.MaxListings
}
