package checkout

import (
	"context"

	"github.com/noah-isme/checkout-pricing/internal/money"
)

// StandardBasePrices computes base prices from the catalog unit prices
// resolved onto the line views. Line-level discounts are already reflected
// in LineInfo.UnitPrice; the checkout-level discount is applied to the total.
type StandardBasePrices struct {
	// ShippingAmount is the selected delivery method price in the checkout
	// currency. Zero when no method is selected.
	ShippingAmount money.Money
}

// LineTotal returns unit price times quantity.
func (p StandardBasePrices) LineTotal(_ context.Context, line *LineInfo, _ string, _ []Discount) (money.Money, error) {
	return line.UnitPrice.MulInt(line.Line.Quantity), nil
}

// LineUnit returns the resolved unit price.
func (p StandardBasePrices) LineUnit(_ context.Context, line *LineInfo, _ string, _ []Discount) (money.Money, error) {
	return line.UnitPrice, nil
}

// ShippingPrice returns the delivery method price, preferring the one
// resolved onto the checkout over the static fallback.
func (p StandardBasePrices) ShippingPrice(_ context.Context, info *Info, _ []*LineInfo) (money.Money, error) {
	if info.Checkout.ShippingMethodPrice.Currency != "" {
		return info.Checkout.ShippingMethodPrice, nil
	}
	if p.ShippingAmount.Currency == "" {
		return money.Zero(info.Checkout.Currency), nil
	}
	return p.ShippingAmount, nil
}

// CheckoutTotal returns lines plus shipping minus the checkout discount,
// floored at zero.
func (p StandardBasePrices) CheckoutTotal(ctx context.Context, info *Info, discounts []Discount, lines []*LineInfo) (money.Money, error) {
	currency := info.Checkout.Currency
	total := money.Zero(currency)
	for _, line := range lines {
		lineTotal, err := p.LineTotal(ctx, line, info.Channel, discounts)
		if err != nil {
			return money.Money{}, err
		}
		total = total.Add(lineTotal)
	}
	shipping, err := p.ShippingPrice(ctx, info, lines)
	if err != nil {
		return money.Money{}, err
	}
	total = total.Add(shipping)
	total = total.Sub(money.New(info.Checkout.DiscountAmount, currency))
	if total.IsNegative() {
		return money.Zero(currency), nil
	}
	return total, nil
}
