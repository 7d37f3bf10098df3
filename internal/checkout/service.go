package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/events"
	"github.com/noah-isme/checkout-pricing/internal/money"
	"github.com/noah-isme/checkout-pricing/internal/obs"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// ErrTaxDataLineMismatch is returned when a consolidated provider response
// carries a different number of line entries than the checkout has lines.
// Applying it positionally would silently misassign prices.
var ErrTaxDataLineMismatch = errors.New("checkout: tax data line count does not match checkout lines")

// ErrLineNotFound is returned by line-level reads for an unknown line id.
var ErrLineNotFound = errors.New("checkout: line not found")

// ErrNotFound is returned by loaders when a checkout id resolves to nothing.
var ErrNotFound = errors.New("checkout: not found")

// DefaultPricesTTL bounds how long a computed snapshot stays fresh.
const DefaultPricesTTL = time.Hour

// Service recalculates and caches checkout prices. Reads go through
// FetchPricesIfExpired so callers always observe a consistent snapshot.
type Service struct {
	Base      BasePrices
	Tax       TaxProvider
	Rates     RateSource
	Store     Store
	GiftCards GiftCardBalances
	Events    *events.Bus
	TTL       time.Duration
	// Now is the clock; nil means time.Now. Tests pin it.
	Now    func() time.Time
	Logger zerolog.Logger
}

// FetchPricesIfExpired recomputes the checkout snapshot when it is stale or
// when force is set, persists it, and pushes the expiration forward. Fresh
// snapshots are returned unchanged with no provider calls and no writes.
func (s *Service) FetchPricesIfExpired(ctx context.Context, info *Info, lines []*LineInfo, discounts []Discount, force bool) (*Info, []*LineInfo, error) {
	if s == nil || s.Store == nil {
		return nil, nil, errors.New("checkout: service not configured")
	}
	c := info.Checkout
	now := s.now()

	if !force && now.Before(c.PriceExpiration) {
		if obs.PriceCacheHits != nil {
			obs.PriceCacheHits.Inc()
		}
		return info, lines, nil
	}

	cfg := info.TaxConfiguration
	shouldChargeTax := cfg.ShouldChargeTax(c.TaxExemption)

	var err error
	switch {
	case cfg.PricesEnteredWithTax:
		// Tax has to be computed even when it will not be charged, so the
		// rate can still be shown to the user.
		err = s.calculateAndAddTax(ctx, info, lines, discounts)
		if err == nil && !shouldChargeTax {
			removeTax(c, lines)
		}
	case shouldChargeTax:
		err = s.calculateAndAddTax(ctx, info, lines, discounts)
	default:
		err = s.applyBasePrices(ctx, info, lines, discounts)
	}
	if err != nil {
		s.recordRecompute(cfg.Strategy, "error")
		return nil, nil, err
	}

	c.PriceExpiration = now.Add(s.ttl())
	if err := s.Store.SavePrices(ctx, c, rawLines(lines)); err != nil {
		s.recordRecompute(cfg.Strategy, "error")
		return nil, nil, fmt.Errorf("checkout: persist prices: %w", err)
	}
	s.recordRecompute(cfg.Strategy, "ok")
	s.emitPricesUpdated(ctx, c, cfg.Strategy)
	return info, lines, nil
}

func (s *Service) calculateAndAddTax(ctx context.Context, info *Info, lines []*LineInfo, discounts []Discount) error {
	cfg := info.TaxConfiguration
	address := info.taxAddress()
	switch cfg.Strategy {
	case tax.StrategyTaxApp:
		if err := s.applyProviderPrices(ctx, info, lines, address, discounts); err != nil {
			return err
		}
		data, ok, err := s.Tax.TaxesForCheckout(ctx, info, lines)
		if err != nil {
			return err
		}
		if !ok {
			// No consolidated result: the per-call provider values stand.
			return nil
		}
		return applyTaxData(info.Checkout, lines, data)
	case tax.StrategyFlatRates:
		return s.applyFlatRates(ctx, info, lines, discounts)
	default:
		return fmt.Errorf("%w: %q", tax.ErrUnknownStrategy, cfg.Strategy)
	}
}

// applyProviderPrices sets every price through the per-call provider
// interface. These values act as a fallback when the consolidated call
// returns nothing.
func (s *Service) applyProviderPrices(ctx context.Context, info *Info, lines []*LineInfo, address *Address, discounts []Discount) error {
	if s.Tax == nil {
		return errors.New("checkout: tax provider not configured")
	}
	c := info.Checkout
	for _, li := range lines {
		total, err := s.Tax.CalculateLineTotal(ctx, info, lines, li, address, discounts)
		if err != nil {
			return err
		}
		mustMatchCurrency(c.Currency, total.Currency())
		li.Line.TotalPrice = total

		unit, err := s.Tax.CalculateLineUnit(ctx, info, lines, li, address, discounts)
		if err != nil {
			return err
		}
		rate, err := s.Tax.LineTaxRate(ctx, info, lines, li, address, unit)
		if err != nil {
			return err
		}
		li.Line.TaxRate = rate
	}

	shipping, err := s.Tax.CalculateShipping(ctx, info, lines, address, discounts)
	if err != nil {
		return err
	}
	mustMatchCurrency(c.Currency, shipping.Currency())
	c.ShippingPrice = shipping
	shippingRate, err := s.Tax.ShippingTaxRate(ctx, info, lines, address, shipping)
	if err != nil {
		return err
	}
	c.ShippingTaxRate = shippingRate

	subtotal, err := s.Tax.CalculateSubtotal(ctx, info, lines, address, discounts)
	if err != nil {
		return err
	}
	mustMatchCurrency(c.Currency, subtotal.Currency())
	c.Subtotal = subtotal

	total, err := s.Tax.CalculateTotal(ctx, info, lines, address, discounts)
	if err != nil {
		return err
	}
	mustMatchCurrency(c.Currency, total.Currency())
	c.Total = total
	return nil
}

// applyTaxData overwrites line and checkout prices from a consolidated
// provider result. Entries pair with lines positionally after a length
// check; subtotal and total are recomputed locally for consistency.
func applyTaxData(c *Checkout, lines []*LineInfo, data tax.Data) error {
	if len(data.Lines) != len(lines) {
		return fmt.Errorf("%w: got %d entries for %d lines", ErrTaxDataLineMismatch, len(data.Lines), len(lines))
	}
	currency := c.Currency
	for i, li := range lines {
		entry := data.Lines[i]
		li.Line.TotalPrice = money.NewTaxed(
			money.New(entry.TotalNetAmount, currency),
			money.New(entry.TotalGrossAmount, currency),
		).Quantize()
		li.Line.TaxRate = tax.NormalizeRate(entry.TaxRate)
	}
	c.ShippingTaxRate = tax.NormalizeRate(data.ShippingTaxRate)
	c.ShippingPrice = money.NewTaxed(
		money.New(data.ShippingPriceNetAmount, currency),
		money.New(data.ShippingPriceGrossAmount, currency),
	).Quantize()
	c.Subtotal = sumLineTotals(lines, currency)
	c.Total = c.Subtotal.Add(c.ShippingPrice).Quantize()
	return nil
}

// applyFlatRates prices every line and shipping from the configured rate
// table, with no external call.
func (s *Service) applyFlatRates(ctx context.Context, info *Info, lines []*LineInfo, discounts []Discount) error {
	if s.Rates == nil || s.Base == nil {
		return errors.New("checkout: flat rates not configured")
	}
	table, err := s.Rates.Table(ctx)
	if err != nil {
		return fmt.Errorf("checkout: load rate table: %w", err)
	}
	c := info.Checkout
	country := info.country()
	entered := info.TaxConfiguration.PricesEnteredWithTax

	for _, li := range lines {
		base, err := s.Base.LineTotal(ctx, li, info.Channel, discounts)
		if err != nil {
			return err
		}
		mustMatchCurrency(c.Currency, base.Currency)
		rate := table.RateFor(li.TaxClass, country)
		li.Line.TotalPrice = tax.ApplyRate(base, rate, entered).Quantize()
		li.Line.TaxRate = tax.NormalizeRate(rate)
	}

	shippingBase, err := s.Base.ShippingPrice(ctx, info, lines)
	if err != nil {
		return err
	}
	shippingRate := table.ShippingRateFor(country)
	c.ShippingPrice = tax.ApplyRate(shippingBase, shippingRate, entered).Quantize()
	c.ShippingTaxRate = tax.NormalizeRate(shippingRate)
	c.Subtotal = sumLineTotals(lines, c.Currency)
	c.Total = c.Subtotal.Add(c.ShippingPrice).Quantize()
	return nil
}

// applyBasePrices sets tax-free prices: gross equals net everywhere.
func (s *Service) applyBasePrices(ctx context.Context, info *Info, lines []*LineInfo, discounts []Discount) error {
	if s.Base == nil {
		return errors.New("checkout: base prices not configured")
	}
	c := info.Checkout
	for _, li := range lines {
		total, err := s.Base.LineTotal(ctx, li, info.Channel, discounts)
		if err != nil {
			return err
		}
		mustMatchCurrency(c.Currency, total.Currency)
		li.Line.TotalPrice = money.FromMoney(total).Quantize()

		unit, err := s.Base.LineUnit(ctx, li, info.Channel, discounts)
		if err != nil {
			return err
		}
		li.Line.TaxRate = tax.RateFromPrice(money.FromMoney(unit).Quantize())
	}

	shipping, err := s.Base.ShippingPrice(ctx, info, lines)
	if err != nil {
		return err
	}
	c.ShippingPrice = money.FromMoney(shipping).Quantize()
	c.ShippingTaxRate = tax.RateFromPrice(c.ShippingPrice)
	c.Subtotal = sumLineTotals(lines, c.Currency)

	total, err := s.Base.CheckoutTotal(ctx, info, discounts, lines)
	if err != nil {
		return err
	}
	c.Total = money.FromMoney(total).Quantize()
	return nil
}

// removeTax resets every gross to its net counterpart and zeroes all tax
// rates, discarding the gross values computed just before.
func removeTax(c *Checkout, lines []*LineInfo) {
	c.Total.Gross = c.Total.Net
	c.Subtotal.Gross = c.Subtotal.Net
	c.ShippingPrice.Gross = c.ShippingPrice.Net
	c.ShippingTaxRate = decimal.Zero
	for _, li := range lines {
		li.Line.TotalPrice.Gross = li.Line.TotalPrice.Net
		li.Line.TaxRate = decimal.Zero
	}
}

func sumLineTotals(lines []*LineInfo, currency string) money.TaxedMoney {
	total := money.ZeroTaxed(currency)
	for _, li := range lines {
		total = total.Add(li.Line.TotalPrice)
	}
	return total.Quantize()
}

func rawLines(lines []*LineInfo) []*Line {
	out := make([]*Line, 0, len(lines))
	for _, li := range lines {
		out = append(out, li.Line)
	}
	return out
}

// mustMatchCurrency enforces the single-currency invariant. A mismatch is a
// programming error, not a recoverable condition.
func mustMatchCurrency(want, got string) {
	if want != got {
		panic(fmt.Sprintf("checkout: currency mismatch: checkout is %s, price is %s", want, got))
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultPricesTTL
}

func (s *Service) recordRecompute(strategy tax.Strategy, result string) {
	if obs.PriceRecomputeTotal == nil {
		return
	}
	obs.PriceRecomputeTotal.WithLabelValues(string(strategy), result).Inc()
}

func (s *Service) emitPricesUpdated(ctx context.Context, c *Checkout, strategy tax.Strategy) {
	if s.Events == nil {
		return
	}
	payload := map[string]any{
		"checkoutId": c.ID.String(),
		"currency":   c.Currency,
		"totalGross": c.Total.Gross.Amount.String(),
		"strategy":   string(strategy),
	}
	if _, err := s.Events.Emit(ctx, events.TopicCheckoutPricesUpdated, c.ID, payload); err != nil {
		s.Logger.Error().Err(err).Str("checkout_id", c.ID.String()).Msg("emit prices updated")
	}
}
