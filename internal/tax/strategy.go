package tax

import (
	"errors"
	"fmt"
)

// ErrUnknownStrategy indicates a tax configuration naming a strategy this
// service does not implement. Misconfiguration must fail loudly instead of
// silently skipping tax computation.
var ErrUnknownStrategy = errors.New("tax: unknown calculation strategy")

// Strategy selects how taxes are computed for a checkout.
type Strategy string

const (
	// StrategyTaxApp delegates tax computation to an external tax provider.
	StrategyTaxApp Strategy = "TAX_APP"
	// StrategyFlatRates computes taxes from configured per-class rate tables.
	StrategyFlatRates Strategy = "FLAT_RATES"
)

// Valid reports whether the strategy is one this service implements.
func (s Strategy) Valid() bool {
	return s == StrategyTaxApp || s == StrategyFlatRates
}

// ParseStrategy converts a stored strategy name into a Strategy.
func ParseStrategy(value string) (Strategy, error) {
	s := Strategy(value)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, value)
	}
	return s, nil
}

// Configuration is the tax configuration resolved for a checkout from its
// channel and shipping country.
type Configuration struct {
	Strategy             Strategy
	PricesEnteredWithTax bool
	ChargeTaxes          bool
}

// ShouldChargeTax combines the channel-level charge flag with the
// checkout-level exemption.
func (c Configuration) ShouldChargeTax(exempt bool) bool {
	return c.ChargeTaxes && !exempt
}
