package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, rateType string) ([]Response, error)
	DiscardDraft(ctx context.Context, id string) error
}

type CreateRequest struct {
	RateType     string `json:"rate_type"`
	Name         string `json:"name"`
	VersionLabel string `json:"version_label"`
	Currency     string `json:"currency"`

	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to"`

	UnitRates          map[string]decimal.Decimal      `json:"unit_rates"`
	OverageRates       map[string]decimal.Decimal      `json:"overage_rates"`
	VolumeTiers        []VolumeTier                    `json:"volume_tiers"`
	UrgencyMultipliers map[UrgencyTier]decimal.Decimal `json:"urgency_multipliers"`
	ModifierClasses    map[string]decimal.Decimal      `json:"modifier_classes"`

	FallbackCategory string          `json:"fallback_category"`
	HandlingFee      decimal.Decimal `json:"handling_fee"`
	MinimumCharge    decimal.Decimal `json:"minimum_charge"`

	Metadata map[string]any `json:"metadata"`
}

type Response struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	RateType       string     `json:"rate_type"`
	Name           string     `json:"name"`
	VersionLabel   string     `json:"version_label"`
	Currency       string     `json:"currency"`
	EffectiveFrom  time.Time  `json:"effective_from"`
	EffectiveTo    *time.Time `json:"effective_to,omitempty"`

	UnitRates          map[string]decimal.Decimal      `json:"unit_rates"`
	OverageRates       map[string]decimal.Decimal      `json:"overage_rates,omitempty"`
	VolumeTiers        []VolumeTier                    `json:"volume_tiers,omitempty"`
	UrgencyMultipliers map[UrgencyTier]decimal.Decimal `json:"urgency_multipliers"`
	ModifierClasses    map[string]decimal.Decimal      `json:"modifier_classes,omitempty"`

	FallbackCategory string          `json:"fallback_category,omitempty"`
	HandlingFee      decimal.Decimal `json:"handling_fee"`
	MinimumCharge    decimal.Decimal `json:"minimum_charge"`

	State             LifecycleState `json:"state"`
	PreviousVersionID *string        `json:"previous_version_id,omitempty"`
	NextVersionID     *string        `json:"next_version_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidRateType     = errors.New("invalid_rate_type")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidRate         = errors.New("invalid_rate")
	ErrUnknownCategory     = errors.New("unknown_category")
	ErrNotDraft            = errors.New("not_draft")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)
