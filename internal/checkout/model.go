package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/money"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// Checkout is the aggregate root carrying the cached monetary snapshot.
// PriceExpiration is the authoritative cache-validity marker: recomputation
// is skipped entirely while now < PriceExpiration.
type Checkout struct {
	ID              uuid.UUID
	Currency        string
	TaxExemption    bool
	PriceExpiration time.Time

	// ShippingMethodPrice is the selected delivery method base price, in
	// the checkout currency. Zero-valued when no method is selected.
	ShippingMethodPrice money.Money

	ShippingPrice   money.TaxedMoney
	ShippingTaxRate decimal.Decimal
	Subtotal        money.TaxedMoney
	Total           money.TaxedMoney

	DiscountAmount         decimal.Decimal
	DiscountName           string
	TranslatedDiscountName string
	VoucherCode            string
}

// Line is one checkout line. Only the recalculation engine mutates its
// price fields; adding and removing lines happens elsewhere.
type Line struct {
	ID         uuid.UUID
	Quantity   int
	TotalPrice money.TaxedMoney
	TaxRate    decimal.Decimal
}

// Address carries the bits of an address the engine needs.
type Address struct {
	Country string
}

// Discount is an externally resolved discount applied to the checkout.
type Discount struct {
	Name   string
	Amount money.Money
}

// Info wraps a checkout with the resolved context needed for one
// recomputation call. It is supplied by the caller per call, not persisted.
type Info struct {
	Checkout         *Checkout
	Channel          string
	ShippingAddress  *Address
	BillingAddress   *Address
	TaxConfiguration tax.Configuration
}

// LineInfo wraps a line with the resolved variant context used by base-price
// formulas and flat-rate lookups.
type LineInfo struct {
	Line      *Line
	VariantID uuid.UUID
	TaxClass  string
	// UnitPrice is the catalog unit price in the checkout currency, with
	// line-level discounts already applied. It is a base (tax-free) amount
	// unless prices are entered with tax.
	UnitPrice money.Money
}

// taxAddress resolves the address used for tax computation, preferring the
// shipping address.
func (i *Info) taxAddress() *Address {
	if i.ShippingAddress != nil {
		return i.ShippingAddress
	}
	return i.BillingAddress
}

// country returns the tax country code, empty when no address is known.
func (i *Info) country() string {
	if addr := i.taxAddress(); addr != nil {
		return addr.Country
	}
	return ""
}
