package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/money"
)

// GiftCards resolves gift card balances attached to checkouts.
type GiftCards struct {
	pool *pgxpool.Pool
}

// NewGiftCards constructs a GiftCards store backed by a pgx pool.
func NewGiftCards(pool *pgxpool.Pool) *GiftCards {
	return &GiftCards{pool: pool}
}

// TotalBalance sums the active gift card balances in the checkout currency.
// Cards in other currencies are excluded rather than converted.
func (s *GiftCards) TotalBalance(ctx context.Context, checkoutID uuid.UUID, currency string) (money.Money, error) {
	if s == nil || s.pool == nil {
		return money.Money{}, ErrStoreUnavailable
	}
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(current_balance_amount), 0)::text
		FROM gift_cards
		WHERE checkout_id = $1 AND currency = $2 AND is_active`,
		checkoutID, currency).Scan(&raw)
	if err != nil {
		return money.Money{}, fmt.Errorf("repo: gift card balance: %w", err)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return money.Money{}, fmt.Errorf("repo: gift card balance: %w", err)
	}
	return money.New(amount, currency), nil
}

var _ checkout.GiftCardBalances = (*GiftCards)(nil)
