package tax

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/money"
)

// ErrInvalidRate flags a configured percentage at or below -100, which would
// zero or invert the price factor used by ApplyRate.
var ErrInvalidRate = errors.New("tax: rate must be greater than -100")

// ValidateRatePercent checks a configured percentage rate is usable.
func ValidateRatePercent(rate decimal.Decimal) error {
	if rate.LessThanOrEqual(decimal.NewFromInt(-100)) {
		return ErrInvalidRate
	}
	return nil
}

// RateTable holds configured flat tax rates. Rates are percentages keyed by
// tax class and country; a class without an entry for the country falls back
// to the country default.
type RateTable struct {
	// CountryRates maps ISO country code to the default percentage rate.
	CountryRates map[string]decimal.Decimal
	// ClassRates maps tax class name to per-country percentage rates.
	ClassRates map[string]map[string]decimal.Decimal
	// ShippingTaxClass names the class used for shipping; empty means the
	// country default applies.
	ShippingTaxClass string
}

// RateFor resolves the percentage rate for a tax class in a country.
func (t RateTable) RateFor(taxClass, country string) decimal.Decimal {
	if byCountry, ok := t.ClassRates[taxClass]; ok {
		if rate, ok := byCountry[country]; ok {
			return rate
		}
	}
	if rate, ok := t.CountryRates[country]; ok {
		return rate
	}
	return decimal.Zero
}

// ShippingRateFor resolves the percentage rate applied to shipping.
func (t RateTable) ShippingRateFor(country string) decimal.Decimal {
	return t.RateFor(t.ShippingTaxClass, country)
}

// ApplyRate turns a flat base price into a net/gross pair. When prices are
// entered with tax the base amount is the gross and the net is backed out;
// otherwise the base is the net and tax is added on top.
func ApplyRate(base money.Money, ratePercent decimal.Decimal, pricesEnteredWithTax bool) money.TaxedMoney {
	factor := decimal.NewFromInt(1).Add(ratePercent.Div(decimal.NewFromInt(100)))
	if pricesEnteredWithTax {
		net := money.New(base.Amount.Div(factor), base.Currency)
		return money.NewTaxed(net, base)
	}
	gross := money.New(base.Amount.Mul(factor), base.Currency)
	return money.NewTaxed(base, gross)
}
