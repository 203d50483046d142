// Package payment implements the payment pipeline: fee computation,
// card validation, and the orchestrator driving offer-to-transaction
// processing.
package payment

import (
	"fmt"

	"paywallet/internal/common/money"
)

// FeeConfig holds fee policy configuration. Amounts are in minor units
// of the offer's currency.
type FeeConfig struct {
	ThresholdMinor  int64 `envconfig:"FEE_THRESHOLD_MINOR" default:"100000"`
	RateBasisPoints int64 `envconfig:"FEE_RATE_BPS" default:"100"`
	CapMinor        int64 `envconfig:"FEE_CAP_MINOR" default:"50000"`
}

// FeeCalculator applies the service fee to offer amounts. Amounts below
// the threshold pass unchanged; from the threshold up the fee is rate
// basis points of the amount, clamped to the cap, added exactly once.
type FeeCalculator struct {
	cfg FeeConfig
}

// NewFeeCalculator creates a fee calculator
func NewFeeCalculator(cfg FeeConfig) *FeeCalculator {
	return &FeeCalculator{cfg: cfg}
}

// Apply returns the fee-inclusive absolute charge and the fee portion.
// An amount without a known currency is a programming error upstream
// and panics.
func (c *FeeCalculator) Apply(amount money.Money) (charged, fee money.Money) {
	if _, ok := money.GetCurrencyInfo(amount.Currency); !ok {
		panic(fmt.Sprintf("fee calculation on amount without currency: %q", amount.Currency))
	}

	abs := amount.Abs()
	threshold := money.New(c.cfg.ThresholdMinor, amount.Currency)
	if abs.LessThan(threshold) {
		return abs, money.Zero(amount.Currency)
	}

	maxFee := money.New(c.cfg.CapMinor, amount.Currency)
	fee = abs.Percentage(c.cfg.RateBasisPoints).Min(maxFee)
	return abs.MustAdd(fee), fee
}
