package taxapp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/money"
	"github.com/noah-isme/checkout-pricing/internal/resilience"
	"github.com/noah-isme/checkout-pricing/internal/taxapp"
)

func testClient(t *testing.T, url string) *taxapp.Client {
	t.Helper()
	return &taxapp.Client{
		BaseURL: url,
		HTTP: resilience.HTTPClient{
			Client:      http.DefaultClient,
			Breaker:     resilience.NewBreaker(100, 0.9, time.Second),
			MaxAttempts: 1,
		},
		Base: checkout.StandardBasePrices{
			ShippingAmount: money.MustParse("5.00", "USD"),
		},
	}
}

func testCheckout(t *testing.T) (*checkout.Info, []*checkout.LineInfo) {
	t.Helper()
	info := &checkout.Info{
		Checkout: &checkout.Checkout{
			ID:       uuid.New(),
			Currency: "USD",
		},
		Channel:         "default",
		ShippingAddress: &checkout.Address{Country: "US"},
	}
	lines := []*checkout.LineInfo{
		{
			Line:      &checkout.Line{ID: uuid.New(), Quantity: 2},
			VariantID: uuid.New(),
			TaxClass:  "standard",
			UnitPrice: money.MustParse("10.00", "USD"),
		},
	}
	return info, lines
}

func TestTaxesForCheckoutDecodesResult(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/calculate-taxes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"shipping_price_net_amount": "5.00",
			"shipping_price_gross_amount": "6.15",
			"shipping_tax_rate": "23",
			"lines": [
				{"total_net_amount": "20.00", "total_gross_amount": "24.60", "tax_rate": "23"}
			]
		}`))
	}))
	defer srv.Close()

	info, lines := testCheckout(t)
	data, ok, err := testClient(t, srv.URL).TaxesForCheckout(context.Background(), info, lines)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, info.Checkout.ID.String(), got["checkout_id"])
	require.Equal(t, "USD", got["currency"])
	require.Equal(t, "US", got["country"])

	require.Len(t, data.Lines, 1)
	require.True(t, data.Lines[0].TotalGrossAmount.Equal(decimal.RequireFromString("24.60")))
	require.True(t, data.ShippingTaxRate.Equal(decimal.NewFromInt(23)))
}

func TestTaxesForCheckoutNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	info, lines := testCheckout(t)
	_, ok, err := testClient(t, srv.URL).TaxesForCheckout(context.Background(), info, lines)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTaxesForCheckoutEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	info, lines := testCheckout(t)
	_, ok, err := testClient(t, srv.URL).TaxesForCheckout(context.Background(), info, lines)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTaxesForCheckoutServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	info, lines := testCheckout(t)
	_, ok, err := testClient(t, srv.URL).TaxesForCheckout(context.Background(), info, lines)
	require.Error(t, err)
	require.False(t, ok)
}

func TestPerCallFallbacksAreTaxFree(t *testing.T) {
	info, lines := testCheckout(t)
	client := testClient(t, "http://tax-app.invalid")

	total, err := client.CalculateLineTotal(context.Background(), info, lines, lines[0], nil, nil)
	require.NoError(t, err)
	require.True(t, total.Net.Equal(total.Gross))
	require.Equal(t, "20.00 USD", total.Net.String())

	rate, err := client.LineTaxRate(context.Background(), info, lines, lines[0], nil, total)
	require.NoError(t, err)
	require.True(t, rate.IsZero())

	shipping, err := client.CalculateShipping(context.Background(), info, lines, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "5.00 USD", shipping.Gross.String())
}
