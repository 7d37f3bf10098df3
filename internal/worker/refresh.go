// Package worker refreshes expired checkout price snapshots in the
// background so interactive reads rarely pay the recomputation cost.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/lock"
	"github.com/noah-isme/checkout-pricing/internal/obs"
)

// TypeRefreshPrices is the asynq task type for the periodic refresh scan.
const TypeRefreshPrices = "checkout:refresh_prices"

// NewRefreshTask builds the periodic refresh task. The task carries no
// payload; each run scans for whatever is expired at that moment.
func NewRefreshTask() *asynq.Task {
	return asynq.NewTask(TypeRefreshPrices, nil)
}

// ExpiredSource lists checkouts whose snapshot lapsed.
type ExpiredSource interface {
	ExpiredIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// Locker serialises refreshes of the same checkout across workers.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Refresher drains expired checkouts and recomputes their prices.
type Refresher struct {
	Expired ExpiredSource
	Loader  checkout.Loader
	Svc     *checkout.Service
	Locker  Locker
	LockTTL time.Duration
	Batch   int
	// Now is the clock; nil means time.Now. Tests pin it.
	Now    func() time.Time
	Logger zerolog.Logger
}

// HandleRefreshTask is the asynq handler for TypeRefreshPrices. Failures on
// individual checkouts are logged and counted but do not abort the batch;
// the task itself only fails when the scan query does.
func (r *Refresher) HandleRefreshTask(ctx context.Context, _ *asynq.Task) error {
	if r.Expired == nil || r.Loader == nil || r.Svc == nil {
		return errors.New("worker: refresher not configured")
	}
	ids, err := r.Expired.ExpiredIDs(ctx, r.now(), r.batch())
	if err != nil {
		return fmt.Errorf("worker: scan expired checkouts: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	r.Logger.Info().Int("count", len(ids)).Msg("refreshing expired checkout prices")
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.refreshOne(ctx, id); err != nil {
			r.record("error")
			r.Logger.Error().Err(err).Str("checkout_id", id.String()).Msg("refresh checkout prices")
			continue
		}
		r.record("ok")
	}
	return nil
}

// refreshOne recomputes a single checkout under a per-checkout lock. A
// concurrent interactive recomputation may have refreshed it already, in
// which case the freshness check short-circuits inside the service.
func (r *Refresher) refreshOne(ctx context.Context, id uuid.UUID) error {
	work := func(ctx context.Context) error {
		info, lines, err := r.Loader.Load(ctx, id)
		if err != nil {
			if errors.Is(err, checkout.ErrNotFound) {
				// deleted between scan and refresh
				return nil
			}
			return err
		}
		_, _, err = r.Svc.FetchPricesIfExpired(ctx, info, lines, nil, false)
		return err
	}
	if r.Locker == nil {
		return work(ctx)
	}
	return r.Locker.WithLock(ctx, lock.RefreshKey(id), r.lockTTL(), work)
}

func (r *Refresher) record(result string) {
	if obs.RefreshedCheckoutsTotal == nil {
		return
	}
	obs.RefreshedCheckoutsTotal.WithLabelValues(result).Inc()
}

func (r *Refresher) batch() int {
	if r.Batch > 0 {
		return r.Batch
	}
	return 100
}

func (r *Refresher) lockTTL() time.Duration {
	if r.LockTTL > 0 {
		return r.LockTTL
	}
	return 30 * time.Second
}

func (r *Refresher) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
