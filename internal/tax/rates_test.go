package tax

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/money"
)

func TestRateForClassOverridesCountryDefault(t *testing.T) {
	table := RateTable{
		CountryRates: map[string]decimal.Decimal{"PL": decimal.NewFromInt(23)},
		ClassRates: map[string]map[string]decimal.Decimal{
			"books": {"PL": decimal.NewFromInt(5)},
		},
	}
	if got := table.RateFor("books", "PL"); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected class rate 5, got %s", got)
	}
	if got := table.RateFor("electronics", "PL"); !got.Equal(decimal.NewFromInt(23)) {
		t.Fatalf("expected country default 23, got %s", got)
	}
	if got := table.RateFor("books", "DE"); !got.IsZero() {
		t.Fatalf("expected zero for unknown country, got %s", got)
	}
}

func TestApplyRateNetEntered(t *testing.T) {
	price := ApplyRate(money.MustParse("20.00", "USD"), decimal.NewFromInt(10), false)
	if price.Net.Amount.String() != "20" {
		t.Fatalf("net should stay as entered, got %s", price.Net.Amount)
	}
	if price.Gross.Quantize().Amount.String() != "22" {
		t.Fatalf("expected gross 22, got %s", price.Gross.Amount)
	}
}

func TestApplyRateGrossEntered(t *testing.T) {
	price := ApplyRate(money.MustParse("11.00", "USD"), decimal.NewFromInt(10), true)
	if price.Gross.Amount.String() != "11" {
		t.Fatalf("gross should stay as entered, got %s", price.Gross.Amount)
	}
	if price.Net.Quantize().Amount.String() != "10" {
		t.Fatalf("expected net 10, got %s", price.Net.Amount)
	}
}

func TestNormalizeRate(t *testing.T) {
	got := NormalizeRate(decimal.NewFromInt(23))
	if got.String() != "0.23" {
		t.Fatalf("expected 0.23, got %s", got)
	}
}

func TestRateFromPrice(t *testing.T) {
	price := money.NewTaxed(money.MustParse("10.00", "USD"), money.MustParse("11.00", "USD"))
	if got := RateFromPrice(price); got.String() != "0.1" {
		t.Fatalf("expected 0.1, got %s", got)
	}
	zero := money.ZeroTaxed("USD")
	if got := RateFromPrice(zero); !got.IsZero() {
		t.Fatalf("expected zero rate for zero net, got %s", got)
	}
}

func TestValidateRatePercent(t *testing.T) {
	if err := ValidateRatePercent(decimal.NewFromInt(23)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateRatePercent(decimal.NewFromInt(-50)); err != nil {
		t.Fatalf("discount-style negative rate should pass, got %v", err)
	}
	if err := ValidateRatePercent(decimal.NewFromInt(-100)); err == nil {
		t.Fatal("expected error for -100, which zeroes the price factor")
	}
	if err := ValidateRatePercent(decimal.NewFromInt(-150)); err == nil {
		t.Fatal("expected error for rate below -100")
	}
}

func TestParseStrategy(t *testing.T) {
	if _, err := ParseStrategy("TAX_APP"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseStrategy("AVALARA"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
