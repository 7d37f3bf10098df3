package repo

import (
	"database/sql"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/checkout-pricing/internal/tax"
)

type fakeRow struct {
	values []any
}

func (f fakeRow) Scan(dest ...any) error {
	if len(dest) != len(f.values) {
		return fmt.Errorf("scan arity mismatch: %d dest, %d values", len(dest), len(f.values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		value := reflect.ValueOf(f.values[i])
		if !value.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("column %d: cannot assign %s to %s", i, value.Type(), target.Type())
		}
		target.Set(value)
	}
	return nil
}

func TestScanCheckoutBuildsInfo(t *testing.T) {
	id := uuid.New()
	expiration := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := fakeRow{values: []any{
		id, "USD", "default-channel", false, expiration,
		sql.NullString{String: "PL", Valid: true}, sql.NullString{},
		"FLAT_RATES", true, true,
		"4.500",
		"4.500", "5.535", "0.2300",
		"20.000", "24.600",
		"24.500", "30.135",
		"0.000", sql.NullString{}, sql.NullString{}, sql.NullString{},
	}}

	info, err := scanCheckout(row)
	if err != nil {
		t.Fatalf("scanCheckout: %v", err)
	}
	if info.Checkout.ID != id {
		t.Fatalf("unexpected id %s", info.Checkout.ID)
	}
	if info.Channel != "default-channel" {
		t.Fatalf("unexpected channel %q", info.Channel)
	}
	if got := info.TaxConfiguration.Strategy; got != tax.StrategyFlatRates {
		t.Fatalf("unexpected strategy %q", got)
	}
	if !info.TaxConfiguration.PricesEnteredWithTax {
		t.Fatal("expected prices entered with tax")
	}
	if info.ShippingAddress == nil || info.ShippingAddress.Country != "PL" {
		t.Fatalf("unexpected shipping address %+v", info.ShippingAddress)
	}
	if info.BillingAddress != nil {
		t.Fatalf("expected nil billing address, got %+v", info.BillingAddress)
	}
	if got := info.Checkout.ShippingPrice.Gross.String(); got != "5.54 USD" {
		t.Fatalf("unexpected shipping gross %q", got)
	}
	if got := info.Checkout.Total.Net.Amount.String(); got != "24.5" {
		t.Fatalf("unexpected total net %q", got)
	}
	if got := info.Checkout.ShippingTaxRate.String(); got != "0.23" {
		t.Fatalf("unexpected shipping rate %q", got)
	}
}

func TestScanCheckoutRejectsBadNumeric(t *testing.T) {
	row := fakeRow{values: []any{
		uuid.New(), "USD", "default-channel", false, time.Now(),
		sql.NullString{}, sql.NullString{},
		"FLAT_RATES", false, true,
		"not-a-number",
		"0", "0", "0",
		"0", "0",
		"0", "0",
		"0", sql.NullString{}, sql.NullString{}, sql.NullString{},
	}}
	if _, err := scanCheckout(row); err == nil {
		t.Fatal("expected error for malformed numeric column")
	}
}

func TestScanLineBuildsView(t *testing.T) {
	lineID := uuid.New()
	variantID := uuid.New()
	row := fakeRow{values: []any{
		lineID, variantID, sql.NullString{String: "standard", Valid: true}, 2,
		"10.000", "20.000", "24.600", "0.2300",
	}}

	li, err := scanLine(row, "USD")
	if err != nil {
		t.Fatalf("scanLine: %v", err)
	}
	if li.Line.ID != lineID || li.VariantID != variantID {
		t.Fatal("ids not carried through")
	}
	if li.TaxClass != "standard" {
		t.Fatalf("unexpected tax class %q", li.TaxClass)
	}
	if li.Line.Quantity != 2 {
		t.Fatalf("unexpected quantity %d", li.Line.Quantity)
	}
	if got := li.UnitPrice.String(); got != "10.00 USD" {
		t.Fatalf("unexpected unit price %q", got)
	}
	if got := li.Line.TotalPrice.Gross.String(); got != "24.60 USD" {
		t.Fatalf("unexpected line gross %q", got)
	}
}
