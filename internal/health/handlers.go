// Package health exposes the liveness and readiness probes for the pricing
// service. Readiness reflects the two dependencies every price recompute
// needs: postgres (checkout snapshots) and redis (locks and rate limits).
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/noah-isme/checkout-pricing/internal/common"
)

// Checker probes the dependencies backing the pricing service.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for the health endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Live reports liveness. The process answering at all is the signal.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether price recomputation can currently be served: both
// the checkout store and redis must answer within their probe timeouts.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		common.JSONError(w, http.StatusServiceUnavailable, common.CodeInternal, "dependencies unavailable", nil)
		return
	}
	ctx := r.Context()
	body := readiness{
		Status: "ok",
		Checks: map[string]string{"database": "ok", "redis": "ok"},
	}
	if err := h.Checker.PingDB(ctx, h.dbTimeout()); err != nil {
		body.Status = "degraded"
		body.Checks["database"] = err.Error()
	}
	if err := h.Checker.PingRedis(ctx, h.redisTimeout()); err != nil {
		body.Status = "degraded"
		body.Checks["redis"] = err.Error()
	}
	status := http.StatusOK
	if body.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	common.JSON(w, status, body)
}

func (h Handler) dbTimeout() time.Duration {
	if h.DBTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.DBTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
