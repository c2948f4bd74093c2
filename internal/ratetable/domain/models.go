// Package domain contains the rate schedule model and its validation rules.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type LifecycleState string

var (
	StateDraft      LifecycleState = "DRAFT"
	StateActive     LifecycleState = "ACTIVE"
	StateSuperseded LifecycleState = "SUPERSEDED"
	StateExpired    LifecycleState = "EXPIRED"
)

type UrgencyTier string

var (
	UrgencyStandard  UrgencyTier = "STANDARD"
	UrgencyExpedited UrgencyTier = "EXPEDITED"
	UrgencyRush      UrgencyTier = "RUSH"
	UrgencySameDay   UrgencyTier = "SAME_DAY"
)

// VolumeTier grants a percentage discount once the request quantity
// reaches Threshold. Tiers are stored ordered by ascending threshold.
type VolumeTier struct {
	Threshold       int64           `json:"threshold"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// RateTable is one versioned rate schedule for a (org, rate type) scope.
// Once activated it is treated as immutable pricing input; lifecycle
// transitions only touch State, EffectiveTo and the version links.
type RateTable struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID        snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index:idx_rate_tables_scope"`
	RateType     string       `json:"rate_type" gorm:"type:text;not null;index:idx_rate_tables_scope"`
	Name         string       `json:"name" gorm:"type:text;not null"`
	VersionLabel string       `json:"version_label" gorm:"type:text;not null;default:'1.0'"`

	Currency      string     `json:"currency" gorm:"type:text;not null"`
	EffectiveFrom time.Time  `json:"effective_from" gorm:"not null"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty" gorm:""`

	UnitRates          datatypes.JSONType[map[string]decimal.Decimal]      `json:"unit_rates" gorm:"type:jsonb"`
	OverageRates       datatypes.JSONType[map[string]decimal.Decimal]      `json:"overage_rates" gorm:"type:jsonb"`
	VolumeTiers        datatypes.JSONType[[]VolumeTier]                    `json:"volume_tiers" gorm:"type:jsonb"`
	UrgencyMultipliers datatypes.JSONType[map[UrgencyTier]decimal.Decimal] `json:"urgency_multipliers" gorm:"type:jsonb"`
	ModifierClasses    datatypes.JSONType[map[string]decimal.Decimal]      `json:"modifier_classes" gorm:"type:jsonb"`

	FallbackCategory string          `json:"fallback_category" gorm:"type:text"`
	HandlingFee      decimal.Decimal `json:"handling_fee" gorm:"type:numeric;not null"`
	MinimumCharge    decimal.Decimal `json:"minimum_charge" gorm:"type:numeric;not null"`

	State LifecycleState `json:"state" gorm:"type:text;not null;default:'DRAFT';index"`

	// Weak references: lookup only, never cascaded on delete.
	PreviousVersionID *snowflake.ID `json:"previous_version_id,omitempty" gorm:""`
	NextVersionID     *snowflake.ID `json:"next_version_id,omitempty" gorm:""`

	Metadata  datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (RateTable) TableName() string { return "rate_tables" }

// Validate checks the structural invariants of the schedule. A table that
// passes here can never fail pricing for structural reasons afterwards.
func (t *RateTable) Validate() error {
	for category, rate := range t.UnitRates.Data() {
		if rate.IsNegative() {
			return fmt.Errorf("%w: unit rate for %q is negative (%s)", ErrInvalidRate, category, rate)
		}
	}
	for category, rate := range t.OverageRates.Data() {
		if rate.IsNegative() {
			return fmt.Errorf("%w: overage rate for %q is negative (%s)", ErrInvalidRate, category, rate)
		}
	}

	tiers := t.VolumeTiers.Data()
	for i, tier := range tiers {
		if tier.Threshold < 0 {
			return fmt.Errorf("%w: volume tier %d has negative threshold (%d)", ErrInvalidRate, i, tier.Threshold)
		}
		if i > 0 && tier.Threshold <= tiers[i-1].Threshold {
			return fmt.Errorf("%w: volume tier thresholds must be strictly increasing (%d then %d)",
				ErrInvalidRate, tiers[i-1].Threshold, tier.Threshold)
		}
		if tier.DiscountPercent.IsNegative() || tier.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: volume tier %d discount out of range [0,100] (%s)", ErrInvalidRate, i, tier.DiscountPercent)
		}
	}

	for tier, multiplier := range t.UrgencyMultipliers.Data() {
		if !multiplier.IsPositive() {
			return fmt.Errorf("%w: urgency multiplier for %q must be > 0 (%s)", ErrInvalidRate, tier, multiplier)
		}
	}
	for class, multiplier := range t.ModifierClasses.Data() {
		if !multiplier.IsPositive() {
			return fmt.Errorf("%w: modifier for class %q must be > 0 (%s)", ErrInvalidRate, class, multiplier)
		}
	}

	if t.HandlingFee.IsNegative() {
		return fmt.Errorf("%w: handling fee is negative (%s)", ErrInvalidRate, t.HandlingFee)
	}
	if t.MinimumCharge.IsNegative() {
		return fmt.Errorf("%w: minimum charge is negative (%s)", ErrInvalidRate, t.MinimumCharge)
	}
	if t.EffectiveTo != nil && !t.EffectiveFrom.IsZero() && t.EffectiveFrom.After(*t.EffectiveTo) {
		return fmt.Errorf("%w: effective_from %s is after effective_to %s",
			ErrInvalidRate, t.EffectiveFrom.Format(time.DateOnly), t.EffectiveTo.Format(time.DateOnly))
	}

	return nil
}

// RateFor resolves the unit rate for a category, falling back to the
// schedule's fallback category when the specific one is absent.
func (t *RateTable) RateFor(category string) (decimal.Decimal, error) {
	rates := t.UnitRates.Data()
	if rate, ok := rates[category]; ok {
		return rate, nil
	}
	if t.FallbackCategory != "" {
		if rate, ok := rates[t.FallbackCategory]; ok {
			return rate, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: no rate configured for category %q", ErrUnknownCategory, category)
}

// OverageRateFor returns the per-overage-unit rate for a category, or
// zero when the category has no overage pricing.
func (t *RateTable) OverageRateFor(category string) decimal.Decimal {
	if rate, ok := t.OverageRates.Data()[category]; ok {
		return rate
	}
	return decimal.Zero
}

// MultiplierFor returns the configured urgency multiplier. An unconfigured
// tier is a hard miss; the calculator never silently defaults it.
func (t *RateTable) MultiplierFor(tier UrgencyTier) (decimal.Decimal, bool) {
	multiplier, ok := t.UrgencyMultipliers.Data()[tier]
	return multiplier, ok
}

// DiscountFor selects the single highest volume tier whose threshold the
// quantity meets. Discounts are never cumulative across tiers.
func (t *RateTable) DiscountFor(quantity int64) decimal.Decimal {
	tiers := t.VolumeTiers.Data()
	for i := len(tiers) - 1; i >= 0; i-- {
		if quantity >= tiers[i].Threshold {
			return tiers[i].DiscountPercent
		}
	}
	return decimal.Zero
}

// ModifierFor returns the location/customer class multiplier, if defined.
func (t *RateTable) ModifierFor(class string) (decimal.Decimal, bool) {
	multiplier, ok := t.ModifierClasses.Data()[class]
	return multiplier, ok
}

// WindowContains reports whether at falls inside the schedule's inclusive
// [EffectiveFrom, EffectiveTo] window. A nil EffectiveTo is open-ended.
func (t *RateTable) WindowContains(at time.Time) bool {
	if at.Before(t.EffectiveFrom) {
		return false
	}
	if t.EffectiveTo != nil && at.After(*t.EffectiveTo) {
		return false
	}
	return true
}

// OverlapsWindow reports whether the schedule's window intersects the
// inclusive [from, to] interval. A nil to is open-ended.
func (t *RateTable) OverlapsWindow(from time.Time, to *time.Time) bool {
	if t.EffectiveTo != nil && from.After(*t.EffectiveTo) {
		return false
	}
	if to != nil && t.EffectiveFrom.After(*to) {
		return false
	}
	return true
}
