// Package taxapp talks to an external tax application over HTTP. The
// consolidated calculate-taxes call is the authoritative source; the
// per-call methods supply base-derived fallback values for when the app
// returns nothing.
package taxapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/money"
	"github.com/noah-isme/checkout-pricing/internal/obs"
	"github.com/noah-isme/checkout-pricing/internal/resilience"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// ErrBadResponse is returned when the tax app answers with an unexpected
// status or an unparsable body.
var ErrBadResponse = errors.New("taxapp: unexpected response")

// Client implements checkout.TaxProvider against a remote tax application.
type Client struct {
	BaseURL string
	HTTP    resilience.HTTPClient
	// Base supplies the fallback values served through the per-call
	// methods while the consolidated result is pending or absent.
	Base   checkout.BasePrices
	Logger zerolog.Logger
}

type calculateTaxesRequest struct {
	CheckoutID string             `json:"checkout_id"`
	Channel    string             `json:"channel"`
	Currency   string             `json:"currency"`
	Country    string             `json:"country,omitempty"`
	Lines      []calculateTaxLine `json:"lines"`
}

type calculateTaxLine struct {
	ID         string          `json:"id"`
	VariantID  string          `json:"variant_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	TaxClass   string          `json:"tax_class,omitempty"`
}

// TaxesForCheckout posts the checkout payload to the tax app and decodes the
// consolidated result. A 204 or an empty body means the app declined to
// price this checkout; ok is false and the caller keeps its fallback values.
func (c *Client) TaxesForCheckout(ctx context.Context, info *checkout.Info, lines []*checkout.LineInfo) (tax.Data, bool, error) {
	payload := calculateTaxesRequest{
		CheckoutID: info.Checkout.ID.String(),
		Channel:    info.Channel,
		Currency:   info.Checkout.Currency,
		Country:    country(info),
		Lines:      make([]calculateTaxLine, 0, len(lines)),
	}
	for _, li := range lines {
		payload.Lines = append(payload.Lines, calculateTaxLine{
			ID:         li.Line.ID.String(),
			VariantID:  li.VariantID.String(),
			Quantity:   li.Line.Quantity,
			UnitPrice:  li.UnitPrice.Amount,
			TotalPrice: li.UnitPrice.Amount.Mul(decimal.NewFromInt(int64(li.Line.Quantity))),
			TaxClass:   li.TaxClass,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return tax.Data{}, false, fmt.Errorf("taxapp: encode request: %w", err)
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/calculate-taxes"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return tax.Data{}, false, fmt.Errorf("taxapp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		c.observe("calculate_taxes", "error", start)
		return tax.Data{}, false, fmt.Errorf("taxapp: calculate taxes: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		c.observe("calculate_taxes", "empty", start)
		return tax.Data{}, false, nil
	case resp.StatusCode != http.StatusOK:
		c.observe("calculate_taxes", "error", start)
		return tax.Data{}, false, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe("calculate_taxes", "error", start)
		return tax.Data{}, false, fmt.Errorf("taxapp: read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		c.observe("calculate_taxes", "empty", start)
		return tax.Data{}, false, nil
	}

	var data tax.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		c.observe("calculate_taxes", "error", start)
		return tax.Data{}, false, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	c.observe("calculate_taxes", "ok", start)
	return data, true, nil
}

// CalculateLineTotal returns the untaxed base total for the line.
func (c *Client) CalculateLineTotal(ctx context.Context, info *checkout.Info, lines []*checkout.LineInfo, line *checkout.LineInfo, _ *checkout.Address, discounts []checkout.Discount) (money.TaxedMoney, error) {
	base, err := c.Base.LineTotal(ctx, line, info.Channel, discounts)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	return money.FromMoney(base).Quantize(), nil
}

// CalculateLineUnit returns the untaxed base unit price for the line.
func (c *Client) CalculateLineUnit(ctx context.Context, info *checkout.Info, lines []*checkout.LineInfo, line *checkout.LineInfo, _ *checkout.Address, discounts []checkout.Discount) (money.TaxedMoney, error) {
	base, err := c.Base.LineUnit(ctx, line, info.Channel, discounts)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	return money.FromMoney(base).Quantize(), nil
}

// LineTaxRate derives the rate from the unit price pair.
func (c *Client) LineTaxRate(_ context.Context, _ *checkout.Info, _ []*checkout.LineInfo, _ *checkout.LineInfo, _ *checkout.Address, unitPrice money.TaxedMoney) (decimal.Decimal, error) {
	return tax.RateFromPrice(unitPrice), nil
}

// CalculateShipping returns the untaxed base shipping price.
func (c *Client) CalculateShipping(ctx context.Context, info *checkout.Info, lines []*checkout.LineInfo, _ *checkout.Address, _ []checkout.Discount) (money.TaxedMoney, error) {
	base, err := c.Base.ShippingPrice(ctx, info, lines)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	return money.FromMoney(base).Quantize(), nil
}

// ShippingTaxRate derives the rate from the shipping price pair.
func (c *Client) ShippingTaxRate(_ context.Context, _ *checkout.Info, _ []*checkout.LineInfo, _ *checkout.Address, shippingPrice money.TaxedMoney) (decimal.Decimal, error) {
	return tax.RateFromPrice(shippingPrice), nil
}

// CalculateSubtotal sums the base line totals.
func (c *Client) CalculateSubtotal(ctx context.Context, info *checkout.Info, lines []*checkout.LineInfo, _ *checkout.Address, discounts []checkout.Discount) (money.TaxedMoney, error) {
	subtotal := money.ZeroTaxed(info.Checkout.Currency)
	for _, li := range lines {
		base, err := c.Base.LineTotal(ctx, li, info.Channel, discounts)
		if err != nil {
			return money.TaxedMoney{}, err
		}
		subtotal = subtotal.Add(money.FromMoney(base))
	}
	return subtotal.Quantize(), nil
}

// CalculateTotal returns the untaxed base checkout total.
func (c *Client) CalculateTotal(ctx context.Context, info *checkout.Info, lines []*checkout.LineInfo, _ *checkout.Address, discounts []checkout.Discount) (money.TaxedMoney, error) {
	base, err := c.Base.CheckoutTotal(ctx, info, discounts, lines)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	return money.FromMoney(base).Quantize(), nil
}

func (c *Client) observe(endpoint, result string, start time.Time) {
	if obs.TaxAppRequestDuration == nil {
		return
	}
	obs.TaxAppRequestDuration.WithLabelValues(endpoint, result).Observe(obs.DurationMillis(time.Since(start)))
}

func country(info *checkout.Info) string {
	if info.ShippingAddress != nil {
		return info.ShippingAddress.Country
	}
	if info.BillingAddress != nil {
		return info.BillingAddress.Country
	}
	return ""
}

var _ checkout.TaxProvider = (*Client)(nil)
