// Package pricing computes itemized service costs from a rate schedule.
// Compute is a pure function: same schedule and request always produce the
// same result, which makes historical quotes replayable for audits.
package pricing

import (
	"errors"
	"fmt"

	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownUrgency = errors.New("unknown_urgency")
	ErrInvalidRequest = errors.New("invalid_request")
)

// Request describes one service to be priced. It is never persisted.
type Request struct {
	Quantity      int64                       `json:"quantity"`
	Category      string                      `json:"category"`
	Urgency       ratetabledomain.UrgencyTier `json:"urgency"`
	OverageCount  int64                       `json:"overage_count,omitempty"`
	ModifierClass string                      `json:"modifier_class,omitempty"`
}

// Result preserves every computation stage, not just the final total;
// dispute resolution needs the full breakdown.
type Result struct {
	Currency string `json:"currency"`

	BaseCost              decimal.Decimal `json:"base_cost"`
	UrgencyMultiplier     decimal.Decimal `json:"urgency_multiplier"`
	UrgencyAdjustedCost   decimal.Decimal `json:"urgency_adjusted_cost"`
	VolumeDiscountPercent decimal.Decimal `json:"volume_discount_percent"`
	VolumeDiscountAmount  decimal.Decimal `json:"volume_discount_amount"`
	ModifierMultiplier    decimal.Decimal `json:"modifier_multiplier"`
	ModifierAdjustedCost  decimal.Decimal `json:"modifier_adjusted_cost"`
	HandlingFee           decimal.Decimal `json:"handling_fee"`
	MinimumChargeApplied  bool            `json:"minimum_charge_applied"`
	FinalTotal            decimal.Decimal `json:"final_total"`
}

var hundred = decimal.NewFromInt(100)

// Compute runs the six pricing stages in their fixed order. Reordering the
// stages changes billed amounts.
func Compute(table *ratetabledomain.RateTable, req Request) (*Result, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be >= 1, got %d", ErrInvalidRequest, req.Quantity)
	}
	if req.OverageCount < 0 {
		return nil, fmt.Errorf("%w: overage count must be >= 0, got %d", ErrInvalidRequest, req.OverageCount)
	}

	// 1. Base cost: unit rate by quantity, plus overage units when the
	//    category prices them.
	unitRate, err := table.RateFor(req.Category)
	if err != nil {
		return nil, err
	}
	baseCost := unitRate.Mul(decimal.NewFromInt(req.Quantity))
	if req.OverageCount > 0 {
		baseCost = baseCost.Add(table.OverageRateFor(req.Category).Mul(decimal.NewFromInt(req.OverageCount)))
	}

	// 2. Urgency adjustment. An unconfigured tier aborts; defaulting it
	//    silently would misbill.
	multiplier, ok := table.MultiplierFor(req.Urgency)
	if !ok {
		return nil, fmt.Errorf("%w: urgency tier %q is not configured", ErrUnknownUrgency, req.Urgency)
	}
	urgencyAdjusted := baseCost.Mul(multiplier)

	// 3. Volume discount: the single highest tier the quantity reaches.
	discountPercent := table.DiscountFor(req.Quantity)
	discountAmount := urgencyAdjusted.Mul(discountPercent).Div(hundred)
	discounted := urgencyAdjusted.Sub(discountAmount)

	// 4. Location/customer modifier, applied after the discount.
	modifierMultiplier := decimal.NewFromInt(1)
	if req.ModifierClass != "" {
		if m, ok := table.ModifierFor(req.ModifierClass); ok {
			modifierMultiplier = m
		}
	}
	modified := discounted.Mul(modifierMultiplier)

	// 5. Flat handling fee, after all percentage adjustments.
	withFee := modified.Add(table.HandlingFee)

	// 6. Minimum charge clamp, then a single terminal rounding to the
	//    currency's minor unit.
	exponent := minorUnitExponent(table.Currency)
	finalTotal := withFee
	minimumApplied := false
	if finalTotal.LessThan(table.MinimumCharge) {
		finalTotal = table.MinimumCharge
		minimumApplied = true
	}
	finalTotal = finalTotal.Round(exponent)

	return &Result{
		Currency:              table.Currency,
		BaseCost:              baseCost,
		UrgencyMultiplier:     multiplier,
		UrgencyAdjustedCost:   urgencyAdjusted,
		VolumeDiscountPercent: discountPercent,
		VolumeDiscountAmount:  discountAmount,
		ModifierMultiplier:    modifierMultiplier,
		ModifierAdjustedCost:  modified,
		HandlingFee:           table.HandlingFee,
		MinimumChargeApplied:  minimumApplied,
		FinalTotal:            finalTotal,
	}, nil
}

// minorUnitExponent returns the ISO 4217 minor-unit digits for a currency.
func minorUnitExponent(currency string) int32 {
	switch currency {
	case "BIF", "CLP", "DJF", "GNF", "ISK", "JPY", "KMF", "KRW", "PYG", "RWF", "UGX", "VND", "VUV", "XAF", "XOF", "XPF":
		return 0
	case "BHD", "IQD", "JOD", "KWD", "LYD", "OMR", "TND":
		return 3
	default:
		return 2
	}
}
