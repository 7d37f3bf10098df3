package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/money"
)

// The read operations below each ensure freshness before returning the
// requested field, quantized to the checkout currency.

// ShippingPrice returns the checkout shipping price.
func (s *Service) ShippingPrice(ctx context.Context, info *Info, lines []*LineInfo, discounts []Discount) (money.TaxedMoney, error) {
	info, _, err := s.FetchPricesIfExpired(ctx, info, lines, discounts, false)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	return info.Checkout.ShippingPrice.Quantize(), nil
}

// ShippingTaxRate returns the fractional tax rate applied to shipping.
func (s *Service) ShippingTaxRate(ctx context.Context, info *Info, lines []*LineInfo, discounts []Discount) (decimal.Decimal, error) {
	info, _, err := s.FetchPricesIfExpired(ctx, info, lines, discounts, false)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return info.Checkout.ShippingTaxRate, nil
}

// Subtotal returns the total cost of all checkout lines, taxes included.
func (s *Service) Subtotal(ctx context.Context, info *Info, lines []*LineInfo, discounts []Discount) (money.TaxedMoney, error) {
	info, _, err := s.FetchPricesIfExpired(ctx, info, lines, discounts, false)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	return info.Checkout.Subtotal.Quantize(), nil
}

// Total returns the checkout total: lines plus shipping minus discounts,
// taxes included.
func (s *Service) Total(ctx context.Context, info *Info, lines []*LineInfo, discounts []Discount) (money.TaxedMoney, error) {
	info, _, err := s.FetchPricesIfExpired(ctx, info, lines, discounts, false)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	return info.Checkout.Total.Quantize(), nil
}

// TotalWithGiftCards returns the total reduced by the checkout's gift-card
// balance, floored at zero. The result is a derived view and is never
// persisted as the cached total.
func (s *Service) TotalWithGiftCards(ctx context.Context, info *Info, lines []*LineInfo, discounts []Discount) (money.TaxedMoney, error) {
	total, err := s.Total(ctx, info, lines, discounts)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	if s.GiftCards == nil {
		return total, nil
	}
	currency := info.Checkout.Currency
	balance, err := s.GiftCards.TotalBalance(ctx, info.Checkout.ID, currency)
	if err != nil {
		return money.TaxedMoney{}, fmt.Errorf("checkout: gift card balance: %w", err)
	}
	adjusted := total.SubMoney(balance)
	if adjusted.IsNegative() {
		return money.ZeroTaxed(currency), nil
	}
	return adjusted.Quantize(), nil
}

// LineTotal returns the total price of one line, taxes included.
func (s *Service) LineTotal(ctx context.Context, info *Info, lines []*LineInfo, lineID uuid.UUID, discounts []Discount) (money.TaxedMoney, error) {
	_, lines, err := s.FetchPricesIfExpired(ctx, info, lines, discounts, false)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	li, err := findLine(lines, lineID)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	return li.Line.TotalPrice.Quantize(), nil
}

// LineUnitPrice returns the unit price of one line, derived from its total.
func (s *Service) LineUnitPrice(ctx context.Context, info *Info, lines []*LineInfo, lineID uuid.UUID, discounts []Discount) (money.TaxedMoney, error) {
	_, lines, err := s.FetchPricesIfExpired(ctx, info, lines, discounts, false)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	li, err := findLine(lines, lineID)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	if li.Line.Quantity <= 0 {
		return money.TaxedMoney{}, fmt.Errorf("checkout: line %s has non-positive quantity %d", lineID, li.Line.Quantity)
	}
	return li.Line.TotalPrice.DivInt(li.Line.Quantity).Quantize(), nil
}

// LineTaxRate returns the fractional tax rate of one line.
func (s *Service) LineTaxRate(ctx context.Context, info *Info, lines []*LineInfo, lineID uuid.UUID, discounts []Discount) (decimal.Decimal, error) {
	_, lines, err := s.FetchPricesIfExpired(ctx, info, lines, discounts, false)
	if err != nil {
		return decimal.Decimal{}, err
	}
	li, err := findLine(lines, lineID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return li.Line.TaxRate, nil
}

func findLine(lines []*LineInfo, lineID uuid.UUID) (*LineInfo, error) {
	for _, li := range lines {
		if li.Line.ID == lineID {
			return li, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
}
