package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/money"
	"github.com/noah-isme/checkout-pricing/internal/tax"
	"github.com/noah-isme/checkout-pricing/internal/worker"
)

type fakeExpired struct {
	ids []uuid.UUID
	err error
}

func (f fakeExpired) ExpiredIDs(context.Context, time.Time, int) ([]uuid.UUID, error) {
	return f.ids, f.err
}

type fakeLoader struct {
	checkouts map[uuid.UUID]*checkout.Info
	loads     int
}

func (f *fakeLoader) Load(_ context.Context, id uuid.UUID) (*checkout.Info, []*checkout.LineInfo, error) {
	f.loads++
	info, ok := f.checkouts[id]
	if !ok {
		return nil, nil, checkout.ErrNotFound
	}
	lines := []*checkout.LineInfo{
		{
			Line:      &checkout.Line{ID: uuid.New(), Quantity: 1},
			VariantID: uuid.New(),
			UnitPrice: money.MustParse("10.00", "USD"),
		},
	}
	return info, lines, nil
}

type recordingStore struct {
	saved []uuid.UUID
}

func (s *recordingStore) SavePrices(_ context.Context, c *checkout.Checkout, _ []*checkout.Line) error {
	s.saved = append(s.saved, c.ID)
	return nil
}

type passthroughLocker struct {
	keys []string
}

func (l *passthroughLocker) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	l.keys = append(l.keys, key)
	return fn(ctx)
}

func staleCheckout(id uuid.UUID) *checkout.Info {
	return &checkout.Info{
		Checkout: &checkout.Checkout{ID: id, Currency: "USD"},
		Channel:  "default",
		ShippingAddress: &checkout.Address{
			Country: "US",
		},
		TaxConfiguration: tax.Configuration{
			Strategy:             tax.StrategyFlatRates,
			PricesEnteredWithTax: false,
			ChargeTaxes:          true,
		},
	}
}

func newRefresher(store *recordingStore) *checkout.Service {
	return &checkout.Service{
		Base: checkout.StandardBasePrices{},
		Rates: checkout.StaticRates(tax.RateTable{
			CountryRates: map[string]decimal.Decimal{"US": decimal.NewFromInt(10)},
		}),
		Store: store,
		TTL:   time.Hour,
	}
}

func TestRefreshesExpiredCheckouts(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	store := &recordingStore{}
	loader := &fakeLoader{checkouts: map[uuid.UUID]*checkout.Info{
		first:  staleCheckout(first),
		second: staleCheckout(second),
	}}
	locker := &passthroughLocker{}
	r := &worker.Refresher{
		Expired: fakeExpired{ids: []uuid.UUID{first, second}},
		Loader:  loader,
		Svc:     newRefresher(store),
		Locker:  locker,
	}

	require.NoError(t, r.HandleRefreshTask(context.Background(), worker.NewRefreshTask()))
	require.ElementsMatch(t, []uuid.UUID{first, second}, store.saved)
	require.Len(t, locker.keys, 2)
	require.Contains(t, locker.keys[0], first.String())
}

func TestDeletedCheckoutIsSkipped(t *testing.T) {
	present := uuid.New()
	store := &recordingStore{}
	loader := &fakeLoader{checkouts: map[uuid.UUID]*checkout.Info{
		present: staleCheckout(present),
	}}
	r := &worker.Refresher{
		Expired: fakeExpired{ids: []uuid.UUID{uuid.New(), present}},
		Loader:  loader,
		Svc:     newRefresher(store),
	}

	require.NoError(t, r.HandleRefreshTask(context.Background(), worker.NewRefreshTask()))
	require.Equal(t, []uuid.UUID{present}, store.saved)
}

func TestScanFailureAbortsTask(t *testing.T) {
	r := &worker.Refresher{
		Expired: fakeExpired{err: errors.New("db down")},
		Loader:  &fakeLoader{},
		Svc:     newRefresher(&recordingStore{}),
	}
	require.Error(t, r.HandleRefreshTask(context.Background(), worker.NewRefreshTask()))
}

func TestFreshCheckoutIsLeftAlone(t *testing.T) {
	id := uuid.New()
	info := staleCheckout(id)
	info.Checkout.PriceExpiration = time.Now().Add(time.Hour)
	store := &recordingStore{}
	r := &worker.Refresher{
		Expired: fakeExpired{ids: []uuid.UUID{id}},
		Loader:  &fakeLoader{checkouts: map[uuid.UUID]*checkout.Info{id: info}},
		Svc:     newRefresher(store),
	}

	require.NoError(t, r.HandleRefreshTask(context.Background(), worker.NewRefreshTask()))
	require.Empty(t, store.saved, "a snapshot refreshed concurrently must not be recomputed")
}
