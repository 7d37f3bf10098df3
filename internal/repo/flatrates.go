package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// FlatRates loads the configured flat tax rates. Rows with a NULL tax class
// are country defaults; everything else is a class override.
type FlatRates struct {
	pool *pgxpool.Pool
	// ShippingTaxClass names the class applied to shipping; empty means
	// country defaults apply.
	ShippingTaxClass string
}

// NewFlatRates constructs a FlatRates source backed by a pgx pool.
func NewFlatRates(pool *pgxpool.Pool, shippingTaxClass string) *FlatRates {
	return &FlatRates{pool: pool, ShippingTaxClass: shippingTaxClass}
}

// Table reads the full rate table. The table is small (one row per country
// and class); callers needing a cache wrap this source.
func (s *FlatRates) Table(ctx context.Context) (tax.RateTable, error) {
	if s == nil || s.pool == nil {
		return tax.RateTable{}, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT country, tax_class, rate::text FROM flat_tax_rates`)
	if err != nil {
		return tax.RateTable{}, fmt.Errorf("repo: load flat rates: %w", err)
	}
	defer rows.Close()

	table := tax.RateTable{
		CountryRates:     map[string]decimal.Decimal{},
		ClassRates:       map[string]map[string]decimal.Decimal{},
		ShippingTaxClass: s.ShippingTaxClass,
	}
	for rows.Next() {
		var (
			country  string
			taxClass sql.NullString
			raw      string
		)
		if err := rows.Scan(&country, &taxClass, &raw); err != nil {
			return tax.RateTable{}, fmt.Errorf("repo: load flat rates: %w", err)
		}
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return tax.RateTable{}, fmt.Errorf("repo: load flat rates: %w", err)
		}
		if err := tax.ValidateRatePercent(rate); err != nil {
			return tax.RateTable{}, fmt.Errorf("repo: flat rate for %s: %w", country, err)
		}
		if !taxClass.Valid || taxClass.String == "" {
			table.CountryRates[country] = rate
			continue
		}
		byCountry := table.ClassRates[taxClass.String]
		if byCountry == nil {
			byCountry = map[string]decimal.Decimal{}
			table.ClassRates[taxClass.String] = byCountry
		}
		byCountry[country] = rate
	}
	if err := rows.Err(); err != nil {
		return tax.RateTable{}, fmt.Errorf("repo: load flat rates: %w", err)
	}
	return table, nil
}

var _ checkout.RateSource = (*FlatRates)(nil)
