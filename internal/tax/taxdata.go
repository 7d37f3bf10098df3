package tax

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/money"
)

// LineData is one line entry of a consolidated provider response. Entries
// correspond positionally to checkout lines.
type LineData struct {
	TotalNetAmount   decimal.Decimal `json:"total_net_amount"`
	TotalGrossAmount decimal.Decimal `json:"total_gross_amount"`
	// TaxRate is a percentage, e.g. 23 for 23%.
	TaxRate decimal.Decimal `json:"tax_rate"`
}

// Data is the consolidated result of an external tax calculation. When a
// provider returns it, it is authoritative for every line and for shipping.
type Data struct {
	ShippingPriceNetAmount   decimal.Decimal `json:"shipping_price_net_amount"`
	ShippingPriceGrossAmount decimal.Decimal `json:"shipping_price_gross_amount"`
	ShippingTaxRate          decimal.Decimal `json:"shipping_tax_rate"`
	Lines                    []LineData      `json:"lines"`
}

// NormalizeRate converts a provider percentage rate into the fractional form
// stored on checkouts and lines, e.g. 23 -> 0.2300.
func NormalizeRate(rate decimal.Decimal) decimal.Decimal {
	return rate.Div(decimal.NewFromInt(100)).Round(4)
}

// RateFromPrice derives a fractional tax rate from a net/gross pair. A zero
// net amount yields a zero rate.
func RateFromPrice(price money.TaxedMoney) decimal.Decimal {
	if price.Net.Amount.IsZero() {
		return decimal.Zero.Round(2)
	}
	return price.Gross.Amount.Div(price.Net.Amount).Sub(decimal.NewFromInt(1)).Round(4)
}
