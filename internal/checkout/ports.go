package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/money"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// BasePrices computes undiscounted or discounted net prices with no tax.
type BasePrices interface {
	LineTotal(ctx context.Context, line *LineInfo, channel string, discounts []Discount) (money.Money, error)
	LineUnit(ctx context.Context, line *LineInfo, channel string, discounts []Discount) (money.Money, error)
	ShippingPrice(ctx context.Context, info *Info, lines []*LineInfo) (money.Money, error)
	CheckoutTotal(ctx context.Context, info *Info, discounts []Discount, lines []*LineInfo) (money.Money, error)
}

// TaxProvider is the external tax computation. The per-call methods mirror
// the plugin interface; TaxesForCheckout returns the consolidated result,
// with ok == false meaning the provider produced no usable data.
type TaxProvider interface {
	CalculateLineTotal(ctx context.Context, info *Info, lines []*LineInfo, line *LineInfo, address *Address, discounts []Discount) (money.TaxedMoney, error)
	CalculateLineUnit(ctx context.Context, info *Info, lines []*LineInfo, line *LineInfo, address *Address, discounts []Discount) (money.TaxedMoney, error)
	LineTaxRate(ctx context.Context, info *Info, lines []*LineInfo, line *LineInfo, address *Address, unitPrice money.TaxedMoney) (decimal.Decimal, error)
	CalculateShipping(ctx context.Context, info *Info, lines []*LineInfo, address *Address, discounts []Discount) (money.TaxedMoney, error)
	ShippingTaxRate(ctx context.Context, info *Info, lines []*LineInfo, address *Address, shippingPrice money.TaxedMoney) (decimal.Decimal, error)
	CalculateSubtotal(ctx context.Context, info *Info, lines []*LineInfo, address *Address, discounts []Discount) (money.TaxedMoney, error)
	CalculateTotal(ctx context.Context, info *Info, lines []*LineInfo, address *Address, discounts []Discount) (money.TaxedMoney, error)
	TaxesForCheckout(ctx context.Context, info *Info, lines []*LineInfo) (tax.Data, bool, error)
}

// RateSource supplies the flat-rate table.
type RateSource interface {
	Table(ctx context.Context) (tax.RateTable, error)
}

// StaticRates serves a fixed rate table, useful for tests and single-tenant
// deployments where rates are loaded once at startup.
type StaticRates tax.RateTable

// Table implements RateSource.
func (s StaticRates) Table(context.Context) (tax.RateTable, error) {
	return tax.RateTable(s), nil
}

// Store persists the recomputed snapshot. Implementations must update only
// the price, discount and expiration fields, never the whole rows.
type Store interface {
	SavePrices(ctx context.Context, c *Checkout, lines []*Line) error
}

// GiftCardBalances resolves the total gift-card balance attached to a
// checkout.
type GiftCardBalances interface {
	TotalBalance(ctx context.Context, checkoutID uuid.UUID, currency string) (money.Money, error)
}

// Loader materialises a checkout view with its resolved context. Used by the
// HTTP handlers and the refresh worker; the engine itself never loads.
type Loader interface {
	Load(ctx context.Context, checkoutID uuid.UUID) (*Info, []*LineInfo, error)
}
