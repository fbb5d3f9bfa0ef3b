package model

import (
	"strings"
	"time"

	"a2z-marketplace/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusTrial   SubscriptionStatus = "trial"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// Profile is a seller account.
type Profile struct {
	ID                    string             `json:"id"`
	Username              string             `json:"username"`
	DisplayName           string             `json:"display_name"`
	Tier                  Tier               `json:"tier"`
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status"`
	SubscriptionStartDate *time.Time         `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time         `json:"subscription_end_date,omitempty"`
	EarlyAdopter          bool               `json:"early_adopter"`
	VerifiedSeller        bool               `json:"verified_seller"`
	TrialUsed             bool               `json:"trial_used"`
	// start of the current free-tier content cycle
	CycleStartedAt time.Time `json:"cycle_started_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewProfile builds a free-tier profile for a freshly signed up user.
func NewProfile(id, username, displayName string, now time.Time) (*Profile, error) {
	username = strings.TrimSpace(username)
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	if username == "" {
		n := len(id)
		if n > 8 {
			n = 8
		}
		username = "user_" + id[:n]
	}
	if displayName == "" {
		displayName = username
	}
	return &Profile{
		ID:                 id,
		Username:           strings.ToLower(username),
		DisplayName:        displayName,
		Tier:               TierFree,
		SubscriptionStatus: SubscriptionStatusActive,
		CycleStartedAt:     now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (p *Profile) IsZero() bool { return p == nil || p.ID == "" }

// HasPaidAccess reports whether the profile currently holds an unexpired paid tier.
func (p *Profile) HasPaidAccess(now time.Time) bool {
	if !p.Tier.Paid() || p.SubscriptionStatus != SubscriptionStatusActive {
		return false
	}
	return p.SubscriptionEndDate == nil || now.Before(*p.SubscriptionEndDate)
}

// EffectiveTier is the tier whose limits apply right now. Lapsed paid and
// trial periods fall back to free.
func (p *Profile) EffectiveTier(now time.Time) Tier {
	if p.Tier == TierFree || p.SubscriptionStatus == SubscriptionStatusExpired {
		return TierFree
	}
	if p.SubscriptionEndDate != nil && !now.Before(*p.SubscriptionEndDate) {
		return TierFree
	}
	return p.Tier
}

// Promote applies a successful payment for tier. The period is absolute from
// now, never an increment of a previous end date.
func (p *Profile) Promote(tier Tier, now time.Time) {
	end := now.AddDate(0, 0, SubscriptionPeriodDays)
	start := now
	p.Tier = tier
	p.SubscriptionStatus = SubscriptionStatusActive
	p.SubscriptionStartDate = &start
	p.SubscriptionEndDate = &end
	p.VerifiedSeller = true
	p.UpdatedAt = now
}

// StartTrial grants a one-off premium trial.
func (p *Profile) StartTrial(now time.Time) error {
	if p.TrialUsed {
		return domain.ErrConflict
	}
	if p.HasPaidAccess(now) {
		return domain.ErrConflict
	}
	end := now.AddDate(0, 0, SubscriptionPeriodDays)
	start := now
	p.Tier = TierPremium
	p.SubscriptionStatus = SubscriptionStatusTrial
	p.SubscriptionStartDate = &start
	p.SubscriptionEndDate = &end
	p.TrialUsed = true
	p.UpdatedAt = now
	return nil
}

// Expire drops a lapsed paid or trial profile back to free and restarts the
// free content cycle.
func (p *Profile) Expire(now time.Time) {
	p.Tier = TierFree
	p.SubscriptionStatus = SubscriptionStatusExpired
	p.CycleStartedAt = now
	p.UpdatedAt = now
}

// ResetInfo describes the free-tier content cycle.
type ResetInfo struct {
	Applies       bool      `json:"applies"`
	CycleStarted  time.Time `json:"cycle_started_at"`
	NextResetAt   time.Time `json:"next_reset_at"`
	DaysRemaining int       `json:"days_remaining"`
}

// ResetInfo reports when the next free-account reset happens.
func (p *Profile) ResetInfo(now time.Time) ResetInfo {
	next := p.CycleStartedAt.AddDate(0, 0, FreeCycleDays)
	info := ResetInfo{
		Applies:      p.EffectiveTier(now) == TierFree,
		CycleStarted: p.CycleStartedAt,
		NextResetAt:  next,
	}
	if left := next.Sub(now); left > 0 {
		info.DaysRemaining = int((left + 24*time.Hour - 1) / (24 * time.Hour))
	}
	return info
}

// DueForReset reports whether the free content cycle has elapsed.
func (p *Profile) DueForReset(now time.Time) bool {
	return p.EffectiveTier(now) == TierFree && !p.CycleStartedAt.AddDate(0, 0, FreeCycleDays).After(now)
}
