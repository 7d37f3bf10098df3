// Package repo provides the postgres-backed stores. Monetary columns are
// numeric; they travel as text and are parsed into decimals so no precision
// is lost on the wire.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/money"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// ErrStoreUnavailable indicates the store dependency is not configured.
var ErrStoreUnavailable = errors.New("repo: store unavailable")

// ErrCheckoutNotFound is returned when a checkout id resolves to nothing.
// It matches checkout.ErrNotFound so handlers need not import this package.
var ErrCheckoutNotFound = checkout.ErrNotFound

// Checkouts persists checkout price snapshots and materialises checkout
// views for the engine.
type Checkouts struct {
	pool *pgxpool.Pool
}

// NewCheckouts constructs a Checkouts store backed by a pgx pool.
func NewCheckouts(pool *pgxpool.Pool) *Checkouts {
	return &Checkouts{pool: pool}
}

const checkoutColumns = `id, currency, channel, tax_exemption, price_expiration,
	shipping_country, billing_country,
	tax_strategy, prices_entered_with_tax, charge_taxes,
	shipping_method_price_amount::text,
	shipping_price_net_amount::text, shipping_price_gross_amount::text, shipping_tax_rate::text,
	subtotal_net_amount::text, subtotal_gross_amount::text,
	total_net_amount::text, total_gross_amount::text,
	discount_amount::text, discount_name, translated_discount_name, voucher_code`

// Load materialises a checkout with its resolved tax configuration and line
// views. Lines come back in creation order so positional tax data pairs
// deterministically.
func (s *Checkouts) Load(ctx context.Context, checkoutID uuid.UUID) (*checkout.Info, []*checkout.LineInfo, error) {
	if s == nil || s.pool == nil {
		return nil, nil, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+checkoutColumns+` FROM checkouts WHERE id = $1`, checkoutID)
	info, err := scanCheckout(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrCheckoutNotFound
		}
		return nil, nil, fmt.Errorf("repo: load checkout: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT id, variant_id, tax_class, quantity,
		unit_price_amount::text,
		total_price_net_amount::text, total_price_gross_amount::text, tax_rate::text
		FROM checkout_lines WHERE checkout_id = $1 ORDER BY created_at, id`, checkoutID)
	if err != nil {
		return nil, nil, fmt.Errorf("repo: load checkout lines: %w", err)
	}
	defer rows.Close()

	currency := info.Checkout.Currency
	var lines []*checkout.LineInfo
	for rows.Next() {
		li, err := scanLine(rows, currency)
		if err != nil {
			return nil, nil, fmt.Errorf("repo: load checkout lines: %w", err)
		}
		lines = append(lines, li)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("repo: load checkout lines: %w", err)
	}
	return info, lines, nil
}

// SavePrices updates the recomputed snapshot. Only the price, discount and
// expiration fields are touched; everything else on the rows stays as is.
func (s *Checkouts) SavePrices(ctx context.Context, c *checkout.Checkout, lines []*checkout.Line) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo: begin save prices: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE checkouts SET
		currency = $2,
		price_expiration = $3,
		shipping_price_net_amount = $4,
		shipping_price_gross_amount = $5,
		shipping_tax_rate = $6,
		subtotal_net_amount = $7,
		subtotal_gross_amount = $8,
		total_net_amount = $9,
		total_gross_amount = $10,
		discount_amount = $11,
		discount_name = $12,
		translated_discount_name = $13,
		voucher_code = $14,
		updated_at = now()
		WHERE id = $1`,
		c.ID,
		c.Currency,
		c.PriceExpiration,
		c.ShippingPrice.Net.Amount,
		c.ShippingPrice.Gross.Amount,
		c.ShippingTaxRate,
		c.Subtotal.Net.Amount,
		c.Subtotal.Gross.Amount,
		c.Total.Net.Amount,
		c.Total.Gross.Amount,
		c.DiscountAmount,
		nullableText(c.DiscountName),
		nullableText(c.TranslatedDiscountName),
		nullableText(c.VoucherCode),
	)
	if err != nil {
		return fmt.Errorf("repo: save checkout prices: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCheckoutNotFound
	}

	for _, line := range lines {
		if _, err := tx.Exec(ctx, `UPDATE checkout_lines SET
			total_price_net_amount = $2,
			total_price_gross_amount = $3,
			tax_rate = $4
			WHERE id = $1 AND checkout_id = $5`,
			line.ID,
			line.TotalPrice.Net.Amount,
			line.TotalPrice.Gross.Amount,
			line.TaxRate,
			c.ID,
		); err != nil {
			return fmt.Errorf("repo: save line prices: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo: commit save prices: %w", err)
	}
	return nil
}

// ExpiredIDs lists checkouts whose price snapshot lapsed before the cutoff,
// oldest first, bounded by limit. The refresh worker drains this.
func (s *Checkouts) ExpiredIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `SELECT id FROM checkouts
		WHERE price_expiration <= $1
		ORDER BY price_expiration ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("repo: list expired checkouts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repo: list expired checkouts: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckout(row rowScanner) (*checkout.Info, error) {
	var (
		c               checkout.Checkout
		channel         string
		shippingCountry sql.NullString
		billingCountry  sql.NullString
		strategy        string
		enteredWithTax  bool
		chargeTaxes     bool

		shippingMethodPrice string
		shippingNet         string
		shippingGross       string
		shippingRate        string
		subtotalNet         string
		subtotalGross       string
		totalNet            string
		totalGross          string
		discountAmount      string
		discountName        sql.NullString
		translatedName      sql.NullString
		voucherCode         sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.Currency, &channel, &c.TaxExemption, &c.PriceExpiration,
		&shippingCountry, &billingCountry,
		&strategy, &enteredWithTax, &chargeTaxes,
		&shippingMethodPrice,
		&shippingNet, &shippingGross, &shippingRate,
		&subtotalNet, &subtotalGross,
		&totalNet, &totalGross,
		&discountAmount, &discountName, &translatedName, &voucherCode,
	)
	if err != nil {
		return nil, err
	}

	if c.ShippingMethodPrice, err = parseMoney(shippingMethodPrice, c.Currency); err != nil {
		return nil, err
	}
	if c.ShippingPrice, err = parseTaxed(shippingNet, shippingGross, c.Currency); err != nil {
		return nil, err
	}
	if c.ShippingTaxRate, err = decimal.NewFromString(shippingRate); err != nil {
		return nil, err
	}
	if c.Subtotal, err = parseTaxed(subtotalNet, subtotalGross, c.Currency); err != nil {
		return nil, err
	}
	if c.Total, err = parseTaxed(totalNet, totalGross, c.Currency); err != nil {
		return nil, err
	}
	if c.DiscountAmount, err = decimal.NewFromString(discountAmount); err != nil {
		return nil, err
	}
	c.DiscountName = discountName.String
	c.TranslatedDiscountName = translatedName.String
	c.VoucherCode = voucherCode.String

	cfg := tax.Configuration{
		Strategy:             tax.Strategy(strategy),
		PricesEnteredWithTax: enteredWithTax,
		ChargeTaxes:          chargeTaxes,
	}
	info := &checkout.Info{
		Checkout:         &c,
		Channel:          channel,
		TaxConfiguration: cfg,
	}
	if shippingCountry.Valid {
		info.ShippingAddress = &checkout.Address{Country: shippingCountry.String}
	}
	if billingCountry.Valid {
		info.BillingAddress = &checkout.Address{Country: billingCountry.String}
	}
	return info, nil
}

func scanLine(row rowScanner, currency string) (*checkout.LineInfo, error) {
	var (
		line     checkout.Line
		variant  uuid.UUID
		taxClass sql.NullString

		unitPrice  string
		totalNet   string
		totalGross string
		rate       string
	)
	if err := row.Scan(&line.ID, &variant, &taxClass, &line.Quantity,
		&unitPrice, &totalNet, &totalGross, &rate); err != nil {
		return nil, err
	}
	var err error
	if line.TotalPrice, err = parseTaxed(totalNet, totalGross, currency); err != nil {
		return nil, err
	}
	if line.TaxRate, err = decimal.NewFromString(rate); err != nil {
		return nil, err
	}
	unit, err := parseMoney(unitPrice, currency)
	if err != nil {
		return nil, err
	}
	return &checkout.LineInfo{
		Line:      &line,
		VariantID: variant,
		TaxClass:  taxClass.String,
		UnitPrice: unit,
	}, nil
}

func parseMoney(raw, currency string) (money.Money, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return money.Money{}, err
	}
	return money.New(amount, currency), nil
}

func parseTaxed(net, gross, currency string) (money.TaxedMoney, error) {
	n, err := parseMoney(net, currency)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	g, err := parseMoney(gross, currency)
	if err != nil {
		return money.TaxedMoney{}, err
	}
	return money.NewTaxed(n, g), nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var (
	_ checkout.Store  = (*Checkouts)(nil)
	_ checkout.Loader = (*Checkouts)(nil)
)
